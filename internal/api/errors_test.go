package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/rnwolf/dbr/internal/model"
)

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", &model.NotFoundError{Entity: "board_config", ID: "b"}, CodeNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", &model.NotFoundError{Entity: "ccr", ID: "c"}), CodeNotFound, http.StatusNotFound},
		{"field validation", &model.ValidationError{Errors: []model.FieldError{{Field: "name", Message: "is required"}}}, CodeInvalidArgument, http.StatusBadRequest},
		{"self dependency", &model.SelfDependencyError{WorkItemID: "a"}, CodeInvalidArgument, http.StatusBadRequest},
		{"cross org", &model.CrossOrganizationError{}, CodeInvalidArgument, http.StatusBadRequest},
		{"not ready", &model.NotReadyError{WorkItemID: "a", Status: model.WorkItemBacklog}, CodeNotReady, http.StatusConflict},
		{"capacity", &model.CapacityExceededError{Required: 50, Capacity: 40}, CodeCapacityExceeded, http.StatusConflict},
		{"blocked", &model.NotReadyError{WorkItemID: "a", Blocked: true}, CodeNotReady, http.StatusConflict},
		{"scheduled item", &model.StatusChangeError{WorkItemID: "a", From: model.WorkItemStandby, To: model.WorkItemReady, ScheduleID: "s"}, CodeInvalidTransition, http.StatusConflict},
		{"cycle", &model.CircularDependencyError{DependentID: "c", PrerequisiteID: "a"}, CodeCircularDependency, http.StatusConflict},
		{"other", errors.New("connection reset"), CodeInternal, http.StatusInternalServerError},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, Classify(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.code))
		})
	}
}

func TestGRPCCode(t *testing.T) {
	assert.Equal(t, codes.NotFound, GRPCCode(CodeNotFound))
	assert.Equal(t, codes.InvalidArgument, GRPCCode(CodeInvalidArgument))
	assert.Equal(t, codes.FailedPrecondition, GRPCCode(CodeNotReady))
	assert.Equal(t, codes.FailedPrecondition, GRPCCode(CodeCapacityExceeded))
	assert.Equal(t, codes.FailedPrecondition, GRPCCode(CodeCircularDependency))
	assert.Equal(t, codes.FailedPrecondition, GRPCCode(CodeInvalidTransition))
	assert.Equal(t, codes.Internal, GRPCCode(CodeInternal))
	assert.Equal(t, codes.Internal, GRPCCode("unknown"))
}

func TestNewErrorResponse(t *testing.T) {
	status, resp := NewErrorResponse(errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", resp.Error)

	status, resp = NewErrorResponse(&model.ValidationError{Errors: []model.FieldError{{Field: "title", Message: "is required"}}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []model.FieldError{{Field: "title", Message: "is required"}}, resp.Fields)

	status, resp = NewErrorResponse(&model.CircularDependencyError{DependentID: "c", PrerequisiteID: "a", Path: []string{"a", "b", "c"}})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, []string{"a", "b", "c"}, resp.Path)
}

func TestSentinel(t *testing.T) {
	assert.Equal(t, model.ErrNotFound, Sentinel(CodeNotFound))
	assert.Equal(t, model.ErrValidation, Sentinel(CodeCapacityExceeded))
	assert.Equal(t, model.ErrCircularDependency, Sentinel(CodeCircularDependency))
	assert.Nil(t, Sentinel(CodeInternal))
}
