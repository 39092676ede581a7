package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/blockorder/pkg/buildinfo"
	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
	"github.com/matzehuels/blockorder/pkg/observability"
	"github.com/matzehuels/blockorder/pkg/pipeline"
	"github.com/matzehuels/blockorder/pkg/store"
)

// layoutRequest is the body of POST /v1/layouts.
type layoutRequest struct {
	Profile  json.RawMessage `json:"profile"`
	Params   layout.Params   `json:"params"`
	Formats  []string        `json:"formats,omitempty"`
	Function string          `json:"function,omitempty"`
	Refresh  bool            `json:"refresh,omitempty"`
}

// runResponse is a stored run as returned by the API.
type runResponse struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	ProfileHash string            `json:"profile_hash"`
	Params      layout.Params     `json:"params"`
	Functions   int               `json:"functions"`
	Totals      layout.Totals     `json:"totals"`
	Improvement float64           `json:"improvement"`
	Layout      *layout.Layout    `json:"layout,omitempty"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
	Cached      bool              `json:"cached,omitempty"`
}

func newRunResponse(run *store.Run) runResponse {
	resp := runResponse{
		ID:          run.ID,
		CreatedAt:   run.CreatedAt,
		ExpiresAt:   run.ExpiresAt,
		ProfileHash: run.ProfileHash,
		Params:      run.Params,
		Functions:   run.Functions,
		Totals:      run.Totals,
		Improvement: run.Totals.Improvement(),
		Layout:      run.Layout,
	}
	if len(run.Artifacts) > 0 {
		resp.Artifacts = make(map[string]string, len(run.Artifacts))
		for format, data := range run.Artifacts {
			resp.Artifacts[format] = string(data)
		}
	}
	return resp
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Get(),
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := layoutRequest{Params: s.params}
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "request body exceeds %d bytes", s.maxBody))
			return
		}
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request"))
		return
	}
	if len(req.Profile) == 0 || string(req.Profile) == "null" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "profile is required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.runner.Execute(ctx, pipeline.Options{
		Profile:       req.Profile,
		ProfileFormat: cfg.FormatJSON,
		Params:        req.Params,
		Workers:       s.workers,
		Formats:       req.Formats,
		Function:      req.Function,
		Refresh:       req.Refresh,
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			err = errors.Wrap(errors.ErrCodeTimeout, err, "layout did not finish within %s", s.timeout)
		}
		s.writeError(w, r, err)
		return
	}

	run := store.NewRun(res.ProfileHash, res.Layout, s.ttl)
	run.Artifacts = res.Artifacts
	if err := s.store.Put(r.Context(), run); err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := newRunResponse(run)
	resp.Layout = nil
	resp.Cached = res.CacheInfo.LayoutHit
	w.Header().Set("Location", "/v1/layouts/"+run.ID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]runResponse, len(runs))
	for i, run := range runs {
		out[i] = newRunResponse(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := newRunResponse(run)
	resp.Artifacts = nil
	writeJSON(w, http.StatusOK, resp)
}

var contentTypes = map[string]string{
	pipeline.FormatClusters:    "text/plain; charset=utf-8",
	pipeline.FormatSymbolOrder: "text/plain; charset=utf-8",
	pipeline.FormatDOT:         "text/vnd.graphviz; charset=utf-8",
	pipeline.FormatJSON:        "application/json",
	pipeline.FormatSVG:         "image/svg+xml",
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(format); err != nil {
		s.writeError(w, r, err)
		return
	}
	run, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data, ok := run.Artifacts[format]
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeNotFound, "run %s has no %s output", run.ID, format))
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.GetCode(err)
	msg := errors.UserMessage(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	if status >= http.StatusInternalServerError {
		observability.HTTP().OnError(r.Context(), r.Method, r.URL.Path, err)
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		if code == errors.ErrCodeInternal {
			msg = "internal error"
		}
	}
	writeJSON(w, status, map[string]errorBody{"error": {Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
