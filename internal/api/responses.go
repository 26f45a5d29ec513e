package api

import (
	"net/http"

	"github.com/go-chi/render"

	"yieldscraper/internal/curve"
)

// MaturityResponse describes one schedule column.
type MaturityResponse struct {
	Months int    `json:"months"`
	Label  string `json:"label"`
}

// PointResponse is one maturity on a curve. Rate is null when the source had no value.
type PointResponse struct {
	Months int     `json:"months"`
	Label  string  `json:"label"`
	Rate   *string `json:"rate"`
}

// CurveResponse is a dated curve.
type CurveResponse struct {
	Date   string          `json:"date"`
	Points []PointResponse `json:"points"`
}

// CurveListResponse wraps a range query.
type CurveListResponse struct {
	Count  int             `json:"count"`
	Curves []CurveResponse `json:"curves"`
}

// NewCurveResponse converts c into its wire form.
func NewCurveResponse(schedule curve.Schedule, c curve.Curve) CurveResponse {
	resp := CurveResponse{
		Date:   c.Time.Format(curve.ISODateLayout),
		Points: make([]PointResponse, 0, schedule.Len()),
	}
	for i, m := range schedule {
		p := PointResponse{Months: m, Label: curve.Label(m)}
		if i < len(c.Values) {
			if v := c.Values[i]; v != "" && v != curve.NaN {
				p.Rate = &v
			}
		}
		resp.Points = append(resp.Points, p)
	}
	return resp
}

// APIError is the JSON error body.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

// Render sets the response status.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ErrInvalidRequest reports a malformed query or path parameter.
func ErrInvalidRequest(err error) render.Renderer {
	return &APIError{StatusCode: http.StatusBadRequest, ErrorCode: "invalid_request", Message: err.Error()}
}

// ErrNotFound reports a missing curve.
func ErrNotFound(msg string) render.Renderer {
	return &APIError{StatusCode: http.StatusNotFound, ErrorCode: "not_found", Message: msg}
}

// ErrUnavailable reports a dataset that could not be loaded.
func ErrUnavailable(err error) render.Renderer {
	return &APIError{StatusCode: http.StatusServiceUnavailable, ErrorCode: "dataset_unavailable", Message: err.Error()}
}
