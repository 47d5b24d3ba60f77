package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"credit-analytics/models"
	"credit-analytics/utils"
)

// Long-format column positions: country, year, amount.
const (
	longCountryCol = 0
	longYearCol    = 1
	longAmountCol  = 2
	longMinFields  = 3
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseResult is the outcome of parsing one document.
type ParseResult struct {
	Records []models.Record
	// Skipped counts rows (long-csv) or cells (wide tables) that failed validation.
	Skipped int
	// Issues lists malformed long-format rows. They never fail the parse.
	Issues []error
}

// Ingestor turns raw documents into normalised records.
type Ingestor struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewIngestor creates an Ingestor with the given logger.
func NewIngestor(logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Ingestor{
		logger: logger.With(slog.String("component", "ingestor")),
		now:    time.Now,
	}
}

// Parse converts raw bytes of the given shape into records.
func (in *Ingestor) Parse(raw []byte, shape models.Shape) (*ParseResult, error) {
	switch shape {
	case models.ShapeLongCSV:
		text, err := decodeText(raw)
		if err != nil {
			return nil, err
		}
		return in.parseLong(text)
	case models.ShapeWideTable:
		text, err := decodeText(raw)
		if err != nil {
			return nil, err
		}
		rows, err := in.splitRows(text, detectDelimiter(text))
		if err != nil {
			return nil, err
		}
		return in.reshapeWide(rows)
	case models.ShapeWorkbook:
		rows, err := readWorkbook(raw)
		if err != nil {
			return nil, err
		}
		return in.reshapeWide(rows)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
}

// Load parses raw and wraps the records in a fresh Dataset. The generation is
// left at zero; the store stamps it when the dataset becomes current.
func (in *Ingestor) Load(source string, raw []byte, shape models.Shape) (*models.Dataset, error) {
	res, err := in.Parse(raw, shape)
	if err != nil {
		in.logger.Warn("ingestion failed",
			slog.String("source", source),
			slog.String("shape", string(shape)),
			slog.Any("error", err))
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	ds := &models.Dataset{
		ID:          uuid.NewString(),
		Source:      source,
		Shape:       shape,
		Fingerprint: xxhash.Sum64(raw),
		LoadedAt:    in.now(),
		Records:     res.Records,
		Skipped:     res.Skipped,
	}
	in.logLoaded(ds, len(res.Issues))
	return ds, nil
}

// Adopt wraps records obtained elsewhere (e.g. a database) in a Dataset.
// The records must already satisfy the Record invariants.
func (in *Ingestor) Adopt(source string, records []models.Record, skipped int) (*models.Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("load %s: %w: no records", source, ErrEmptyOrUnreadableInput)
	}

	h := xxhash.New()
	for _, r := range records {
		_, _ = h.WriteString(r.Country)
		_, _ = h.WriteString("\x1f")
		_, _ = h.WriteString(r.Year)
		_, _ = h.WriteString("\x1f")
		_, _ = h.WriteString(strconv.FormatFloat(r.Amount, 'g', -1, 64))
		_, _ = h.WriteString("\x1e")
	}

	ds := &models.Dataset{
		ID:          uuid.NewString(),
		Source:      source,
		Fingerprint: h.Sum64(),
		LoadedAt:    in.now(),
		Records:     records,
		Skipped:     skipped,
	}
	in.logLoaded(ds, 0)
	return ds, nil
}

func (in *Ingestor) logLoaded(ds *models.Dataset, issues int) {
	in.logger.Info("dataset parsed",
		slog.String("dataset_id", ds.ID),
		slog.String("source", ds.Source),
		slog.String("shape", string(ds.Shape)),
		slog.Int("records", ds.Len()),
		slog.Int("countries", len(ds.Countries())),
		slog.Int("skipped", ds.Skipped),
		slog.Int("malformed_rows", issues),
		slog.String("fingerprint", strconv.FormatUint(ds.Fingerprint, 16)))
}

// parseLong reads country,year,amount rows. Every row goes through the same
// validity check as wide-table cells.
func (in *Ingestor) parseLong(text string) (*ParseResult, error) {
	lines := splitLines(text)
	if _, err := splitFields(lines[0].text, ','); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrEmptyOrUnreadableInput, err)
	}

	res := &ParseResult{}
	dataRows := 0
	for _, l := range lines[1:] {
		dataRows++
		row, err := splitFields(l.text, ',')
		if err != nil {
			in.logger.Warn("unparseable row skipped", slog.Int("line", l.no), slog.Any("error", err))
			res.Issues = append(res.Issues, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, l.no, err))
			res.Skipped++
			continue
		}

		if len(row) < longMinFields {
			merr := &MalformedRowError{Line: l.no, Fields: len(row), Want: longMinFields}
			in.logger.Warn("malformed row skipped", slog.Any("error", merr))
			res.Issues = append(res.Issues, merr)
			res.Skipped++
			continue
		}

		rec, ok := models.NewRecord(row[longCountryCol], row[longYearCol], row[longAmountCol])
		if !ok {
			in.logger.Debug("invalid row skipped", slog.Int("line", l.no))
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}

	if dataRows == 0 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyOrUnreadableInput)
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: no valid rows out of %d", ErrEmptyOrUnreadableInput, dataRows)
	}
	return res, nil
}

// reshapeWide fans each [country, v1, v2, ...] row out into one record per
// year column. Cells without a country, a year label or a finite amount are
// skipped.
func (in *Ingestor) reshapeWide(rows [][]string) (*ParseResult, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: no data rows", ErrEmptyOrUnreadableInput)
	}

	years := rows[0]
	res := &ParseResult{}
	for i, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		country := row[0]
		skipped := 0
		for j := 1; j < len(row); j++ {
			year := ""
			if j < len(years) {
				year = years[j]
			}
			rec, ok := models.NewRecord(country, year, row[j])
			if !ok {
				skipped++
				continue
			}
			res.Records = append(res.Records, rec)
		}
		if skipped > 0 {
			in.logger.Debug("cells skipped",
				slog.Int("row", i+2),
				slog.String("country", country),
				slog.Int("cells", skipped))
		}
		res.Skipped += skipped
	}

	if len(res.Records) == 0 {
		return nil, fmt.Errorf("%w: no valid cells", ErrEmptyOrUnreadableInput)
	}
	return res, nil
}

// splitRows splits every line of a delimited document. Lines the splitter
// rejects are logged and dropped.
func (in *Ingestor) splitRows(text string, delim rune) ([][]string, error) {
	lines := splitLines(text)

	rows := make([][]string, 0, len(lines))
	for i, l := range lines {
		row, err := splitFields(l.text, delim)
		if err != nil {
			if i == 0 {
				return nil, fmt.Errorf("%w: header: %v", ErrEmptyOrUnreadableInput, err)
			}
			in.logger.Warn("unparseable row skipped", slog.Int("line", l.no), slog.Any("error", err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type textLine struct {
	no   int
	text string
}

// splitLines breaks text on \n or \r\n. Blank lines are dropped and every
// kept line remembers its 1-based position.
func splitLines(text string) []textLine {
	var lines []textLine
	for i, l := range strings.Split(text, "\n") {
		l = strings.TrimSuffix(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, textLine{no: i + 1, text: l})
	}
	return lines
}

// detectDelimiter picks ';' when the header line contains one, else ','.
// The choice applies to the whole document.
func detectDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	if strings.ContainsRune(header, ';') {
		return ';'
	}
	return ','
}

// splitFields splits one line on delim. Quoted fields may contain the
// delimiter; an unbalanced quote swallows the rest of its own line only.
func splitFields(line string, delim rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.Read()
}

func decodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: not valid UTF-8 text", ErrEmptyOrUnreadableInput)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: empty document", ErrEmptyOrUnreadableInput)
	}
	return text, nil
}
