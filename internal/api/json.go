package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"lastmile/internal/model"
	"lastmile/internal/playback"
	"lastmile/internal/sim"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeError maps domain errors onto problem responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, title := http.StatusInternalServerError, "Internal Server Error"
	switch {
	case errors.Is(err, model.ErrInvalidArgument):
		status, title = http.StatusBadRequest, "Invalid Argument"
	case errors.Is(err, model.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, playback.ErrInvalidTransition):
		status, title = http.StatusConflict, "Invalid Playback Transition"
	case errors.Is(err, sim.ErrNoRoutes):
		status, title = http.StatusConflict, "No Routes"
	}
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeProblem(w, status, title, "", r.URL.Path)
		return
	}
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body: %w", model.ErrInvalidArgument)
		}
		return fmt.Errorf("invalid json: %v: %w", err, model.ErrInvalidArgument)
	}
	return nil
}
