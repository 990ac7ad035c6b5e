package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
)

// maxBodyBytes limits request bodies.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered, wrapped
// in request logging and panic recovery.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("POST /v1/organizations", s.handleCreateOrganization)
	mux.HandleFunc("GET /v1/organizations", s.handleListOrganizations)
	mux.HandleFunc("GET /v1/organizations/{org}", s.handleGetOrganization)

	mux.HandleFunc("POST /v1/organizations/{org}/ccrs", s.handleCreateCCR)
	mux.HandleFunc("GET /v1/organizations/{org}/ccrs", s.handleListCCRs)
	mux.HandleFunc("GET /v1/ccrs/{id}", s.handleGetCCR)

	mux.HandleFunc("POST /v1/organizations/{org}/boards", s.handleCreateBoard)
	mux.HandleFunc("GET /v1/organizations/{org}/boards", s.handleListBoards)
	mux.HandleFunc("GET /v1/boards/{id}", s.handleGetBoard)
	mux.HandleFunc("GET /v1/organizations/{org}/board-status", s.handleBoardStatus)
	mux.HandleFunc("GET /v1/organizations/{org}/analytics", s.handleBoardAnalytics)

	mux.HandleFunc("POST /v1/organizations/{org}/work-items", s.handleCreateWorkItem)
	mux.HandleFunc("GET /v1/organizations/{org}/work-items", s.handleListWorkItems)
	mux.HandleFunc("GET /v1/organizations/{org}/ready", s.handleReadyWorkItems)
	mux.HandleFunc("GET /v1/organizations/{org}/blocked", s.handleBlockedWorkItems)
	mux.HandleFunc("GET /v1/work-items/{id}", s.handleGetWorkItem)
	mux.HandleFunc("PATCH /v1/work-items/{id}", s.handleUpdateWorkItem)

	mux.HandleFunc("GET /v1/work-items/{id}/dependencies", s.handleListDependencies)
	mux.HandleFunc("POST /v1/work-items/{id}/dependencies", s.handleAddDependency)
	mux.HandleFunc("POST /v1/work-items/{id}/dependencies/validate", s.handleValidateDependency)
	mux.HandleFunc("DELETE /v1/dependencies/{id}", s.handleRemoveDependency)
	mux.HandleFunc("GET /v1/work-items/{id}/readiness", s.handleIsReady)
	mux.HandleFunc("GET /v1/work-items/{id}/chain", s.handleDependencyChain)

	mux.HandleFunc("POST /v1/organizations/{org}/schedules", s.handleCreateSchedule)
	mux.HandleFunc("GET /v1/organizations/{org}/schedules", s.handleListSchedules)
	mux.HandleFunc("GET /v1/schedules/{id}", s.handleGetSchedule)
	mux.HandleFunc("POST /v1/organizations/{org}/advance", s.handleAdvanceTimeUnit)

	mux.HandleFunc("GET /v1/organizations/{org}/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)

	return RecoveryMiddleware(LoggingMiddleware(mux))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with an explicit status.
func writeError(w http.ResponseWriter, status int, message string) {
	code := api.CodeInternal
	switch status {
	case http.StatusBadRequest:
		code = api.CodeInvalidArgument
	case http.StatusNotFound:
		code = api.CodeNotFound
	}
	writeJSON(w, status, api.ErrorResponse{Error: message, Code: code})
}

// writeServiceError maps a service error to its status and body.
func writeServiceError(w http.ResponseWriter, err error) {
	status, body := api.NewErrorResponse(err)
	writeJSON(w, status, body)
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &model.ValidationError{Errors: []model.FieldError{{Field: "body", Message: "invalid JSON: " + err.Error()}}}
	}
	return nil
}

// serve runs a service call on a decoded request and writes the result
// with status on success.
func serve[Req, Resp any](w http.ResponseWriter, r *http.Request, status int, req *Req, call func(context.Context, *Req) (Resp, error)) {
	resp, err := call(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, status, resp)
}

// splitList parses a comma-separated query parameter.
func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &model.ValidationError{Errors: []model.FieldError{{Field: key, Message: "must be a non-negative integer"}}}
	}
	return n, nil
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.Empty{}, s.Health)
}
