package server

import (
	"net/http"

	"github.com/rnwolf/dbr/internal/api"
)

// handleCreateOrganization handles POST /v1/organizations.
func (s *Server) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrganizationRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	serve(w, r, http.StatusCreated, &req, s.CreateOrganization)
}

// handleListOrganizations handles GET /v1/organizations.
func (s *Server) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.Empty{}, s.ListOrganizations)
}

// handleGetOrganization handles GET /v1/organizations/{org}.
func (s *Server) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("org")}, s.GetOrganization)
}

// handleCreateCCR handles POST /v1/organizations/{org}/ccrs.
func (s *Server) handleCreateCCR(w http.ResponseWriter, r *http.Request) {
	var req api.CreateCCRRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.OrganizationID = r.PathValue("org")
	serve(w, r, http.StatusCreated, &req, s.CreateCCR)
}

// handleListCCRs handles GET /v1/organizations/{org}/ccrs.
func (s *Server) handleListCCRs(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.OrganizationRequest{OrganizationID: r.PathValue("org")}, s.ListCCRs)
}

// handleGetCCR handles GET /v1/ccrs/{id}.
func (s *Server) handleGetCCR(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("id")}, s.GetCCR)
}

// handleCreateBoard handles POST /v1/organizations/{org}/boards.
func (s *Server) handleCreateBoard(w http.ResponseWriter, r *http.Request) {
	var req api.CreateBoardRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.OrganizationID = r.PathValue("org")
	serve(w, r, http.StatusCreated, &req, s.CreateBoard)
}

// handleListBoards handles GET /v1/organizations/{org}/boards.
func (s *Server) handleListBoards(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.OrganizationRequest{OrganizationID: r.PathValue("org")}, s.ListBoards)
}

// handleGetBoard handles GET /v1/boards/{id}.
func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("id")}, s.GetBoard)
}

// handleBoardStatus handles GET /v1/organizations/{org}/board-status?board=.
func (s *Server) handleBoardStatus(w http.ResponseWriter, r *http.Request) {
	req := &api.BoardRequest{OrganizationID: r.PathValue("org"), BoardConfigID: r.URL.Query().Get("board")}
	serve(w, r, http.StatusOK, req, s.BoardStatus)
}

// handleBoardAnalytics handles GET /v1/organizations/{org}/analytics?board=.
func (s *Server) handleBoardAnalytics(w http.ResponseWriter, r *http.Request) {
	req := &api.BoardRequest{OrganizationID: r.PathValue("org"), BoardConfigID: r.URL.Query().Get("board")}
	serve(w, r, http.StatusOK, req, s.BoardAnalytics)
}

// handleCreateWorkItem handles POST /v1/organizations/{org}/work-items.
func (s *Server) handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req api.CreateWorkItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.OrganizationID = r.PathValue("org")
	serve(w, r, http.StatusCreated, &req, s.CreateWorkItem)
}

// handleListWorkItems handles GET /v1/organizations/{org}/work-items.
func (s *Server) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	req := &api.ListWorkItemsRequest{
		OrganizationID: r.PathValue("org"),
		Status:         splitList(r.URL.Query().Get("status")),
	}
	var err error
	if req.Limit, err = queryInt(r, "limit"); err != nil {
		writeServiceError(w, err)
		return
	}
	if req.Offset, err = queryInt(r, "offset"); err != nil {
		writeServiceError(w, err)
		return
	}
	serve(w, r, http.StatusOK, req, s.ListWorkItems)
}

// handleReadyWorkItems handles GET /v1/organizations/{org}/ready.
func (s *Server) handleReadyWorkItems(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.OrganizationRequest{OrganizationID: r.PathValue("org")}, s.ReadyWorkItems)
}

// handleBlockedWorkItems handles GET /v1/organizations/{org}/blocked.
func (s *Server) handleBlockedWorkItems(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.OrganizationRequest{OrganizationID: r.PathValue("org")}, s.BlockedWorkItems)
}

// handleGetWorkItem handles GET /v1/work-items/{id}.
func (s *Server) handleGetWorkItem(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("id")}, s.GetWorkItem)
}

// handleUpdateWorkItem handles PATCH /v1/work-items/{id}.
func (s *Server) handleUpdateWorkItem(w http.ResponseWriter, r *http.Request) {
	var req api.UpdateWorkItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.ID = r.PathValue("id")
	serve(w, r, http.StatusOK, &req, s.UpdateWorkItem)
}

// handleListDependencies handles GET /v1/work-items/{id}/dependencies.
func (s *Server) handleListDependencies(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.WorkItemRequest{WorkItemID: r.PathValue("id")}, s.ListDependencies)
}

// handleAddDependency handles POST /v1/work-items/{id}/dependencies.
func (s *Server) handleAddDependency(w http.ResponseWriter, r *http.Request) {
	var req api.AddDependencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.DependentID = r.PathValue("id")
	serve(w, r, http.StatusCreated, &req, s.AddDependency)
}

// handleValidateDependency handles POST /v1/work-items/{id}/dependencies/validate.
func (s *Server) handleValidateDependency(w http.ResponseWriter, r *http.Request) {
	var req api.ValidateDependencyRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.DependentID = r.PathValue("id")
	serve(w, r, http.StatusOK, &req, s.ValidateDependency)
}

// handleRemoveDependency handles DELETE /v1/dependencies/{id}.
func (s *Server) handleRemoveDependency(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("id")}, s.RemoveDependency)
}

// handleIsReady handles GET /v1/work-items/{id}/readiness.
func (s *Server) handleIsReady(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.WorkItemRequest{WorkItemID: r.PathValue("id")}, s.IsReady)
}

// handleDependencyChain handles GET /v1/work-items/{id}/chain.
func (s *Server) handleDependencyChain(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.WorkItemRequest{WorkItemID: r.PathValue("id")}, s.DependencyChain)
}

// handleCreateSchedule handles POST /v1/organizations/{org}/schedules.
func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req api.CreateScheduleRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	req.OrganizationID = r.PathValue("org")
	serve(w, r, http.StatusCreated, &req, s.CreateSchedule)
}

// handleListSchedules handles GET /v1/organizations/{org}/schedules.
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &api.ListSchedulesRequest{
		OrganizationID: r.PathValue("org"),
		BoardConfigID:  q.Get("board"),
		Status:         splitList(q.Get("status")),
	}
	serve(w, r, http.StatusOK, req, s.ListSchedules)
}

// handleGetSchedule handles GET /v1/schedules/{id}.
func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.IDRequest{ID: r.PathValue("id")}, s.GetSchedule)
}

// handleAdvanceTimeUnit handles POST /v1/organizations/{org}/advance.
func (s *Server) handleAdvanceTimeUnit(w http.ResponseWriter, r *http.Request) {
	serve(w, r, http.StatusOK, &api.OrganizationRequest{OrganizationID: r.PathValue("org")}, s.AdvanceTimeUnit)
}

// handleListEvents handles GET /v1/organizations/{org}/events?limit=.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeServiceError(w, err)
		return
	}
	serve(w, r, http.StatusOK, &api.ListEventsRequest{OrganizationID: r.PathValue("org"), Limit: limit}, s.ListEvents)
}
