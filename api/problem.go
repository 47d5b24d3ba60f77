package api

import (
	"net/http"

	"github.com/go-chi/render"
)

// Problem is an RFC 7807 error document.
type Problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Render implements render.Renderer.
func (p *Problem) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, p.Status)
	return nil
}

func newProblem(status int, slug, detail string) *Problem {
	return &Problem{
		Type:   "/errors/" + slug,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func writeProblem(w http.ResponseWriter, r *http.Request, p *Problem) {
	_ = render.Render(w, r, p)
}
