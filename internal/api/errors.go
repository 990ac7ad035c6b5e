package api

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rnwolf/dbr/internal/model"
)

// Error codes carried in ErrorResponse.Code and in gRPC ErrorInfo reasons.
const (
	CodeNotFound           = "not_found"
	CodeInvalidArgument    = "invalid_argument"
	CodeNotReady           = "not_ready"
	CodeInvalidTransition  = "invalid_transition"
	CodeCapacityExceeded   = "capacity_exceeded"
	CodeCircularDependency = "circular_dependency"
	CodeInternal           = "internal"
)

// ErrorDomain is the gRPC ErrorInfo domain for service errors.
const ErrorDomain = "dbr"

// ErrorResponse is the JSON body of every non-2xx HTTP response.
type ErrorResponse struct {
	Error  string             `json:"error"`
	Code   string             `json:"code"`
	Fields []model.FieldError `json:"fields,omitempty"`
	Path   []string           `json:"path,omitempty"` // cycle witness
}

// Classify maps a service error to its wire code. Scheduling conflicts are
// checked before the generic validation family they belong to.
func Classify(err error) string {
	var (
		notReady *model.NotReadyError
		capacity *model.CapacityExceededError
		change   *model.StatusChangeError
	)
	switch {
	case errors.Is(err, model.ErrCircularDependency):
		return CodeCircularDependency
	case errors.As(err, &notReady):
		return CodeNotReady
	case errors.As(err, &capacity):
		return CodeCapacityExceeded
	case errors.As(err, &change):
		return CodeInvalidTransition
	case errors.Is(err, model.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, model.ErrValidation):
		return CodeInvalidArgument
	}
	return CodeInternal
}

// HTTPStatus returns the HTTP status for a wire code.
func HTTPStatus(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotReady, CodeCapacityExceeded, CodeCircularDependency, CodeInvalidTransition:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// GRPCCode returns the gRPC status code for a wire code.
func GRPCCode(code string) codes.Code {
	switch code {
	case CodeNotFound:
		return codes.NotFound
	case CodeInvalidArgument:
		return codes.InvalidArgument
	case CodeNotReady, CodeCapacityExceeded, CodeCircularDependency, CodeInvalidTransition:
		return codes.FailedPrecondition
	}
	return codes.Internal
}

// NewErrorResponse builds the response body for err. Internal errors keep
// a generic message.
func NewErrorResponse(err error) (int, ErrorResponse) {
	code := Classify(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if code == CodeInternal {
		resp.Error = "internal server error"
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Errors
	}
	var ce *model.CircularDependencyError
	if errors.As(err, &ce) {
		resp.Path = ce.Path
	}
	return HTTPStatus(code), resp
}

// Sentinel returns the model sentinel a wire code stands for, or nil.
func Sentinel(code string) error {
	switch code {
	case CodeNotFound:
		return model.ErrNotFound
	case CodeInvalidArgument, CodeNotReady, CodeCapacityExceeded, CodeInvalidTransition:
		return model.ErrValidation
	case CodeCircularDependency:
		return model.ErrCircularDependency
	}
	return nil
}
