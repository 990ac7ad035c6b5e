package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
	"github.com/rnwolf/dbr/internal/scheduling"
)

// serviceName matches the server's registered service.
const serviceName = "dbr.v1.SchedulingService"

// GRPCClient implements Client using the gRPC transport. Requests and
// responses travel as google.protobuf.Struct documents.
type GRPCClient struct {
	conn *grpc.ClientConn
}

var _ Client = (*GRPCClient)(nil)

// NewGRPCClient connects to the given gRPC address and returns a client.
// Extra dial options are appended after insecure transport credentials.
func NewGRPCClient(addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// invoke calls one service method with req encoded as a Struct and decodes
// the response Struct into a new Resp.
func invoke[Resp any](ctx context.Context, c *GRPCClient, method string, req any) (*Resp, error) {
	in, err := toStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+method, in, out); err != nil {
		return nil, fromStatus(err)
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	var resp Resp
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// fromStatus turns a gRPC status carrying an ErrorInfo into an *APIError.
// Errors without one (transport failures) are returned unchanged.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	var apiErr *APIError
	for _, d := range st.Details() {
		switch d := d.(type) {
		case *errdetails.ErrorInfo:
			if d.GetDomain() != api.ErrorDomain {
				continue
			}
			if apiErr == nil {
				apiErr = &APIError{}
			}
			apiErr.Code = d.GetReason()
			if p := d.GetMetadata()["path"]; p != "" {
				apiErr.Path = strings.Split(p, ",")
			}
		case *errdetails.BadRequest:
			if apiErr == nil {
				apiErr = &APIError{}
			}
			for _, v := range d.GetFieldViolations() {
				apiErr.Fields = append(apiErr.Fields, model.FieldError{Field: v.GetField(), Message: v.GetDescription()})
			}
		}
	}
	if apiErr == nil || apiErr.Code == "" {
		return err
	}
	apiErr.StatusCode = api.HTTPStatus(apiErr.Code)
	apiErr.Message = st.Message()
	return apiErr
}

// --- Organizations ---

func (c *GRPCClient) CreateOrganization(ctx context.Context, req *api.CreateOrganizationRequest) (*model.Organization, error) {
	return invoke[model.Organization](ctx, c, "CreateOrganization", req)
}

func (c *GRPCClient) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	return invoke[model.Organization](ctx, c, "GetOrganization", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	resp, err := invoke[api.ListOrganizationsResponse](ctx, c, "ListOrganizations", &api.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

// --- CCRs ---

func (c *GRPCClient) CreateCCR(ctx context.Context, req *api.CreateCCRRequest) (*model.CCR, error) {
	return invoke[model.CCR](ctx, c, "CreateCCR", req)
}

func (c *GRPCClient) GetCCR(ctx context.Context, id string) (*model.CCR, error) {
	return invoke[model.CCR](ctx, c, "GetCCR", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListCCRs(ctx context.Context, orgID string) ([]*model.CCR, error) {
	resp, err := invoke[api.ListCCRsResponse](ctx, c, "ListCCRs", &api.OrganizationRequest{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return resp.CCRs, nil
}

// --- Boards ---

func (c *GRPCClient) CreateBoard(ctx context.Context, req *api.CreateBoardRequest) (*model.BoardConfig, error) {
	return invoke[model.BoardConfig](ctx, c, "CreateBoard", req)
}

func (c *GRPCClient) GetBoard(ctx context.Context, id string) (*model.BoardConfig, error) {
	return invoke[model.BoardConfig](ctx, c, "GetBoard", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListBoards(ctx context.Context, orgID string) ([]*model.BoardConfig, error) {
	resp, err := invoke[api.ListBoardsResponse](ctx, c, "ListBoards", &api.OrganizationRequest{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return resp.Boards, nil
}

func (c *GRPCClient) BoardStatus(ctx context.Context, orgID, boardID string) (*scheduling.BoardStatus, error) {
	return invoke[scheduling.BoardStatus](ctx, c, "BoardStatus", &api.BoardRequest{OrganizationID: orgID, BoardConfigID: boardID})
}

func (c *GRPCClient) BoardAnalytics(ctx context.Context, orgID, boardID string) (*scheduling.BoardAnalytics, error) {
	return invoke[scheduling.BoardAnalytics](ctx, c, "BoardAnalytics", &api.BoardRequest{OrganizationID: orgID, BoardConfigID: boardID})
}

// --- Work items ---

func (c *GRPCClient) CreateWorkItem(ctx context.Context, req *api.CreateWorkItemRequest) (*model.WorkItem, error) {
	return invoke[model.WorkItem](ctx, c, "CreateWorkItem", req)
}

func (c *GRPCClient) GetWorkItem(ctx context.Context, id string) (*model.WorkItem, error) {
	return invoke[model.WorkItem](ctx, c, "GetWorkItem", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListWorkItems(ctx context.Context, req *api.ListWorkItemsRequest) (*api.ListWorkItemsResponse, error) {
	return invoke[api.ListWorkItemsResponse](ctx, c, "ListWorkItems", req)
}

func (c *GRPCClient) UpdateWorkItem(ctx context.Context, req *api.UpdateWorkItemRequest) (*model.WorkItem, error) {
	return invoke[model.WorkItem](ctx, c, "UpdateWorkItem", req)
}

func (c *GRPCClient) ReadyWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	resp, err := invoke[api.WorkItemsResponse](ctx, c, "ReadyWorkItems", &api.OrganizationRequest{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return resp.WorkItems, nil
}

func (c *GRPCClient) BlockedWorkItems(ctx context.Context, orgID string) ([]*model.WorkItem, error) {
	resp, err := invoke[api.WorkItemsResponse](ctx, c, "BlockedWorkItems", &api.OrganizationRequest{OrganizationID: orgID})
	if err != nil {
		return nil, err
	}
	return resp.WorkItems, nil
}

// --- Dependencies ---

func (c *GRPCClient) AddDependency(ctx context.Context, req *api.AddDependencyRequest) (*model.WorkItemDependency, error) {
	return invoke[model.WorkItemDependency](ctx, c, "AddDependency", req)
}

func (c *GRPCClient) RemoveDependency(ctx context.Context, id string) (*model.WorkItemDependency, error) {
	return invoke[model.WorkItemDependency](ctx, c, "RemoveDependency", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListDependencies(ctx context.Context, workItemID string) ([]*model.WorkItemDependency, error) {
	resp, err := invoke[api.ListDependenciesResponse](ctx, c, "ListDependencies", &api.WorkItemRequest{WorkItemID: workItemID})
	if err != nil {
		return nil, err
	}
	return resp.Dependencies, nil
}

func (c *GRPCClient) ValidateDependency(ctx context.Context, dependentID, prerequisiteID string) error {
	_, err := invoke[api.ValidateDependencyResponse](ctx, c, "ValidateDependency",
		&api.ValidateDependencyRequest{DependentID: dependentID, PrerequisiteID: prerequisiteID})
	return err
}

func (c *GRPCClient) IsReady(ctx context.Context, workItemID string) (bool, error) {
	resp, err := invoke[api.ReadinessResponse](ctx, c, "IsReady", &api.WorkItemRequest{WorkItemID: workItemID})
	if err != nil {
		return false, err
	}
	return resp.Ready, nil
}

func (c *GRPCClient) DependencyChain(ctx context.Context, workItemID string) ([]string, error) {
	resp, err := invoke[api.ChainResponse](ctx, c, "DependencyChain", &api.WorkItemRequest{WorkItemID: workItemID})
	if err != nil {
		return nil, err
	}
	return resp.Chain, nil
}

// --- Schedules ---

func (c *GRPCClient) CreateSchedule(ctx context.Context, req *api.CreateScheduleRequest) (*model.Schedule, error) {
	return invoke[model.Schedule](ctx, c, "CreateSchedule", req)
}

func (c *GRPCClient) GetSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	return invoke[model.Schedule](ctx, c, "GetSchedule", &api.IDRequest{ID: id})
}

func (c *GRPCClient) ListSchedules(ctx context.Context, req *api.ListSchedulesRequest) ([]*model.Schedule, error) {
	resp, err := invoke[api.ListSchedulesResponse](ctx, c, "ListSchedules", req)
	if err != nil {
		return nil, err
	}
	return resp.Schedules, nil
}

func (c *GRPCClient) AdvanceTimeUnit(ctx context.Context, orgID string) (*scheduling.AdvanceResult, error) {
	return invoke[scheduling.AdvanceResult](ctx, c, "AdvanceTimeUnit", &api.OrganizationRequest{OrganizationID: orgID})
}

// --- Events ---

func (c *GRPCClient) ListEvents(ctx context.Context, orgID string, limit int) ([]*model.Event, error) {
	resp, err := invoke[api.ListEventsResponse](ctx, c, "ListEvents", &api.ListEventsRequest{OrganizationID: orgID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// --- Health ---

func (c *GRPCClient) Health(ctx context.Context) (string, error) {
	resp, err := invoke[api.HealthResponse](ctx, c, "Health", &api.Empty{})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}
