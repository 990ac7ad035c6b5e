package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

// HTTPClient implements Client using the HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080").
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

func orgPath(orgID, rest string) string {
	return "/v1/organizations/" + url.PathEscape(orgID) + rest
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// --- Organizations ---

func (c *HTTPClient) CreateOrganization(ctx context.Context, req *api.CreateOrganizationRequest) (*model.Organization, error) {
	var org model.Organization
	if err := c.doJSON(ctx, http.MethodPost, "/v1/organizations", req, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *HTTPClient) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	if err := c.doJSON(ctx, http.MethodGet, orgPath(id, ""), nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *HTTPClient) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	var resp api.ListOrganizationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/organizations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

// --- CCRs ---

func (c *HTTPClient) CreateCCR(ctx context.Context, req *api.CreateCCRRequest) (*model.CCR, error) {
	var ccr model.CCR
	if err := c.doJSON(ctx, http.MethodPost, orgPath(req.OrganizationID, "/ccrs"), req, &ccr); err != nil {
		return nil, err
	}
	return &ccr, nil
}

func (c *HTTPClient) GetCCR(ctx context.Context, id string) (*model.CCR, error) {
	var ccr model.CCR
	if err := c.doJSON(ctx, http.MethodGet, "/v1/ccrs/"+url.PathEscape(id), nil, &ccr); err != nil {
		return nil, err
	}
	return &ccr, nil
}

func (c *HTTPClient) ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error) {
	var resp api.ListCCRsResponse
	if err := c.doJSON(ctx, http.MethodGet, orgPath(orgID, "/ccrs"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.CCRs, nil
}

// --- Boards ---

func (c *HTTPClient) CreateBoard(ctx context.Context, req *api.CreateBoardRequest) (*model.BoardConfig, error) {
	var board model.BoardConfig
	if err := c.doJSON(ctx, http.MethodPost, orgPath(req.OrganizationID, "/boards"), req, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *HTTPClient) GetBoard(ctx context.Context, id string) (*model.BoardConfig, error) {
	var board model.BoardConfig
	if err := c.doJSON(ctx, http.MethodGet, "/v1/boards/"+url.PathEscape(id), nil, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

func (c *HTTPClient) ListBoards(ctx context.Context, orgID string) ([]*model.BoardConfig, error) {
	var resp api.ListBoardsResponse
	if err := c.doJSON(ctx, http.MethodGet, orgPath(orgID, "/boards"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Boards, nil
}

func boardQuery(boardID string) url.Values {
	q := url.Values{}
	if boardID != "" {
		q.Set("board", boardID)
	}
	return q
}

func (c *HTTPClient) BoardStatus(ctx context.Context, orgID, boardID string) (*scheduling.BoardStatus, error) {
	var resp scheduling.BoardStatus
	if err := c.doJSON(ctx, http.MethodGet, withQuery(orgPath(orgID, "/board-status"), boardQuery(boardID)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) BoardAnalytics(ctx context.Context, orgID, boardID string) (*scheduling.BoardAnalytics, error) {
	var resp scheduling.BoardAnalytics
	if err := c.doJSON(ctx, http.MethodGet, withQuery(orgPath(orgID, "/analytics"), boardQuery(boardID)), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Work items ---

func (c *HTTPClient) CreateWorkItem(ctx context.Context, req *api.CreateWorkItemRequest) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := c.doJSON(ctx, http.MethodPost, orgPath(req.OrganizationID, "/work-items"), req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := c.doJSON(ctx, http.MethodGet, "/v1/work-items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) ListWorkItems(ctx context.Context, req *api.ListWorkItemsRequest) (*api.ListWorkItemsResponse, error) {
	q := url.Values{}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	var resp api.ListWorkItemsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(orgPath(req.OrganizationID, "/work-items"), q), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateWorkItem(ctx context.Context, req *api.UpdateWorkItemRequest) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := c.doJSON(ctx, http.MethodPatch, "/v1/work-items/"+url.PathEscape(req.ID), req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *HTTPClient) ReadyWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	var resp api.WorkItemsResponse
	if err := c.doJSON(ctx, http.MethodGet, orgPath(orgID, "/ready"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.WorkItems, nil
}

func (c *HTTPClient) BlockedWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	var resp api.WorkItemsResponse
	if err := c.doJSON(ctx, http.MethodGet, orgPath(orgID, "/blocked"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.WorkItems, nil
}

// --- Dependencies ---

func (c *HTTPClient) AddDependency(ctx context.Context, req *api.AddDependencyRequest) (*model.WorkItemDependency, error) {
	var dep model.WorkItemDependency
	if err := c.doJSON(ctx, http.MethodPost, "/v1/work-items/"+url.PathEscape(req.DependentID)+"/dependencies", req, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) RemoveDependency(ctx context.Context, id string) (*model.WorkItemDependency, error) {
	var dep model.WorkItemDependency
	if err := c.doJSON(ctx, http.MethodDelete, "/v1/dependencies/"+url.PathEscape(id), nil, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

func (c *HTTPClient) ListDependencies(ctx context.Context, workItemID string) ([]*model.WorkItemDependency, error) {
	var resp api.ListDependenciesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/work-items/"+url.PathEscape(workItemID)+"/dependencies", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *HTTPClient) ValidateDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	req := &api.ValidateDependencyRequest{DependentID: dependentID, PrerequisiteID: prerequisiteID}
	return c.doJSON(ctx, http.MethodPost, "/v1/work-items/"+url.PathEscape(dependentID)+"/dependencies/validate", req, nil)
}

func (c *HTTPClient) IsReady(ctx context.Context, workItemID string) (bool, error) {
	var resp api.ReadinessResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/work-items/"+url.PathEscape(workItemID)+"/readiness", nil, &resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

func (c *HTTPClient) DependencyChain(ctx context.Context, workItemID string) ([]string, error) {
	var resp api.ChainResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/work-items/"+url.PathEscape(workItemID)+"/chain", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chain, nil
}

// --- Schedules ---

func (c *HTTPClient) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	var sched model.Schedule
	if err := c.doJSON(ctx, http.MethodPost, orgPath(req.OrganizationID, "/schedules"), req, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

func (c *HTTPClient) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	var sched model.Schedule
	if err := c.doJSON(ctx, http.MethodGet, "/v1/schedules/"+url.PathEscape(id), nil, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

func (c *HTTPClient) ListSchedules(ctx context.Context, req *api.ListSchedulesRequest) ([]*model.Schedule, error) {
	q := boardQuery(req.BoardConfigID)
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	var resp api.ListSchedulesResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(orgPath(req.OrganizationID, "/schedules"), q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

func (c *HTTPClient) AdvanceTimeUnit(ctx context.Context, orgID string) (*scheduling.AdvanceResult, error) {
	var res scheduling.AdvanceResult
	if err := c.doJSON(ctx, http.MethodPost, orgPath(orgID, "/advance"), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// --- Events ---

func (c *HTTPClient) ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp api.ListEventsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(orgPath(orgID, "/events"), q), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp api.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp api.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{
				StatusCode: resp.StatusCode,
				Code:       errResp.Code,
				Message:    errResp.Error,
				Fields:     errResp.Fields,
				Path:       errResp.Path,
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
