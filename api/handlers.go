package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"credit-analytics/models"
	chart "credit-analytics/render"
	"credit-analytics/services"
)

// DatasetInfo is the load summary shown after an upload.
type DatasetInfo struct {
	ID          string       `json:"id"`
	Generation  uint64       `json:"generation"`
	Source      string       `json:"source"`
	Shape       models.Shape `json:"shape"`
	Records     int          `json:"records"`
	Skipped     int          `json:"skipped"`
	Countries   []string     `json:"countries"`
	Fingerprint string       `json:"fingerprint"`
	LoadedAt    time.Time    `json:"loaded_at"`
}

func newDatasetInfo(ds *models.Dataset) *DatasetInfo {
	return &DatasetInfo{
		ID:          ds.ID,
		Generation:  ds.Generation,
		Source:      ds.Source,
		Shape:       ds.Shape,
		Records:     ds.Len(),
		Skipped:     ds.Skipped,
		Countries:   ds.Countries(),
		Fingerprint: strconv.FormatUint(ds.Fingerprint, 16),
		LoadedAt:    ds.LoadedAt,
	}
}

// Render implements render.Renderer.
func (d *DatasetInfo) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// StatsResponse carries the summary and chart series for one filter.
// Summary is nil and NoData is true when the filter matched nothing.
type StatsResponse struct {
	Generation uint64          `json:"generation"`
	Query      string          `json:"query"`
	Count      int             `json:"count"`
	Summary    *models.Summary `json:"summary"`
	NoData     bool            `json:"no_data"`
	Charts     []chart.Chart   `json:"charts"`
	Points     []models.Point  `json:"points"`
}

// Render implements render.Renderer.
func (s *StatsResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// CompareRequest selects two groups to compare.
type CompareRequest struct {
	Key string `json:"key" validate:"required,oneof=country year"`
	A   string `json:"a" validate:"required"`
	B   string `json:"b" validate:"required"`
}

// Bind implements render.Binder.
func (c *CompareRequest) Bind(r *http.Request) error {
	c.Key = strings.ToLower(strings.TrimSpace(c.Key))
	c.A = strings.TrimSpace(c.A)
	c.B = strings.TrimSpace(c.B)
	return nil
}

// CompareSide is one label's outcome. Error is set instead of Summary when
// the group has no records.
type CompareSide struct {
	Label   string          `json:"label"`
	Count   int             `json:"count"`
	Summary *models.Summary `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
	Points  []models.Point  `json:"points"`
}

// CompareResponse is the comparison result plus its charts.
type CompareResponse struct {
	Generation uint64         `json:"generation"`
	Key        string         `json:"key"`
	Sides      [2]CompareSide `json:"sides"`
	Charts     []chart.Chart  `json:"charts"`
}

// Render implements render.Renderer.
func (c *CompareResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// UploadDataset handles POST /api/datasets. The form field "file" carries
// the document; "shape" optionally overrides the extension-based choice.
// A failed load leaves the current dataset in place.
func (s *Server) UploadDataset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeProblem(w, r, newProblem(http.StatusRequestEntityTooLarge, "upload-too-large",
				fmt.Sprintf("upload exceeds %d bytes", s.opts.MaxUploadBytes)))
			return
		}
		writeProblem(w, r, newProblem(http.StatusBadRequest, "invalid-upload", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeProblem(w, r, newProblem(http.StatusBadRequest, "missing-file", "form field \"file\" is required"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		writeProblem(w, r, newProblem(http.StatusBadRequest, "invalid-upload", err.Error()))
		return
	}

	shape := models.ShapeForFilename(header.Filename)
	if v := r.FormValue("shape"); v != "" {
		if shape, err = models.ParseShape(v); err != nil {
			writeProblem(w, r, newProblem(http.StatusBadRequest, "invalid-shape", err.Error()))
			return
		}
	}

	ds, err := s.ingestor.Load(header.Filename, raw, shape)
	if err != nil {
		s.metrics.ingest(string(shape), "failed")
		status := http.StatusUnprocessableEntity
		if !errors.Is(err, services.ErrEmptyOrUnreadableInput) {
			status = http.StatusBadRequest
		}
		writeProblem(w, r, newProblem(status, "unreadable-input", err.Error()))
		return
	}

	s.store.Replace(ds)
	s.metrics.ingest(string(shape), "ok")

	render.Status(r, http.StatusCreated)
	_ = render.Render(w, r, newDatasetInfo(ds))
}

// CurrentDataset handles GET /api/datasets/current.
func (s *Server) CurrentDataset(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Current()
	if !ok {
		writeProblem(w, r, noDatasetProblem())
		return
	}
	_ = render.Render(w, r, newDatasetInfo(ds))
}

// Stats handles GET /api/stats?country=. A blank country means all records.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.store.Current()
	if !ok {
		writeProblem(w, r, noDatasetProblem())
		return
	}

	query := r.URL.Query().Get("country")
	subset := services.FilterByCountry(ds.Records, query)

	label := strings.TrimSpace(query)
	if label == "" {
		label = "All countries"
	}

	resp := &StatsResponse{
		Generation: ds.Generation,
		Query:      query,
		Count:      len(subset),
		Charts:     chart.SingleCharts(ds.Generation, label, subset),
		Points:     chart.ScatterPoints(subset),
	}

	summary, err := services.ComputeStatistics(subset)
	switch {
	case errors.Is(err, services.ErrEmptyDataset):
		resp.NoData = true
		s.metrics.query("stats", "no_data")
	case err != nil:
		s.metrics.query("stats", "failed")
		writeProblem(w, r, newProblem(http.StatusInternalServerError, "statistics-failed", err.Error()))
		return
	default:
		resp.Summary = summary
		s.metrics.query("stats", "ok")
	}

	_ = render.Render(w, r, resp)
}

// Compare handles POST /api/compare.
func (s *Server) Compare(w http.ResponseWriter, r *http.Request) {
	req := &CompareRequest{}
	if err := render.Bind(r, req); err != nil {
		writeProblem(w, r, newProblem(http.StatusBadRequest, "invalid-request", err.Error()))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeProblem(w, r, validationProblem(err))
		return
	}

	ds, ok := s.store.Current()
	if !ok {
		writeProblem(w, r, noDatasetProblem())
		return
	}

	key, err := services.ParseGroupKey(req.Key)
	if err != nil {
		writeProblem(w, r, newProblem(http.StatusBadRequest, "invalid-key", err.Error()))
		return
	}

	cmp, err := services.CompareDataset(ds, key, req.A, req.B)
	if err != nil {
		s.metrics.query("compare", "failed")
		writeProblem(w, r, newProblem(http.StatusInternalServerError, "comparison-failed", err.Error()))
		return
	}

	resp := &CompareResponse{
		Generation: cmp.Generation,
		Key:        cmp.Key,
		Charts:     chart.ComparisonCharts(cmp),
	}
	for i, side := range cmp.Sides {
		out := CompareSide{
			Label:   side.Label,
			Count:   len(side.Records),
			Summary: side.Summary,
			Points:  chart.GroupPoints(side.Records),
		}
		if side.Err != nil {
			out.Error = "no data"
			if !errors.Is(side.Err, services.ErrEmptyDataset) {
				out.Error = side.Err.Error()
			}
		}
		resp.Sides[i] = out
	}

	s.logger.Debug("comparison computed",
		slog.String("key", cmp.Key),
		slog.String("a", req.A),
		slog.String("b", req.B),
		slog.Uint64("generation", cmp.Generation))
	s.metrics.query("compare", "ok")
	_ = render.Render(w, r, resp)
}

func noDatasetProblem() *Problem {
	return newProblem(http.StatusNotFound, "no-dataset", "no dataset has been loaded")
}

func validationProblem(err error) *Problem {
	p := newProblem(http.StatusBadRequest, "validation-failed", "request validation failed")

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		p.Errors = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			p.Errors[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return p
}
