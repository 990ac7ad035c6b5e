package server

import (
	"context"
	"net"
	"testing"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rnwolf/dbr/internal/api"
)

// dialBufconn serves ts over an in-memory listener and returns a client
// connection to it.
func dialBufconn(t *testing.T, ts *testServer) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewGRPCServer(ts.srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func invoke(t *testing.T, conn *grpc.ClientConn, name string, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(req)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	out := new(structpb.Struct)
	err = conn.Invoke(context.Background(), "/"+ServiceName+"/"+name, in, out)
	return out, err
}

func errorInfo(t *testing.T, err error) (*status.Status, *errdetails.ErrorInfo) {
	t.Helper()
	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return st, info
		}
	}
	t.Fatalf("no ErrorInfo in %v", st.Details())
	return nil, nil
}

func TestGRPC_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)
	conn := dialBufconn(t, ts)

	out, err := invoke(t, conn, "CreateOrganization", map[string]any{"name": "Acme"})
	if err != nil {
		t.Fatalf("CreateOrganization: %v", err)
	}
	id := out.GetFields()["id"].GetStringValue()
	if id != "org-1" {
		t.Fatalf("expected org-1, got %q", id)
	}

	out, err = invoke(t, conn, "GetOrganization", map[string]any{"id": id})
	if err != nil {
		t.Fatalf("GetOrganization: %v", err)
	}
	if got := out.GetFields()["name"].GetStringValue(); got != "Acme" {
		t.Fatalf("expected Acme, got %q", got)
	}

	if _, err := invoke(t, conn, "CreateCCR", map[string]any{
		"organization_id": id, "name": "Dev Team", "capacity_per_time_unit": 40,
	}); err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	out, err = invoke(t, conn, "CreateBoard", map[string]any{
		"organization_id": id, "name": "Main", "ccr_id": "ccr-1",
		"pre_constraint_buffer_size": 0, "post_constraint_buffer_size": 1,
	})
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if got := out.GetFields()["post_constraint_buffer_size"].GetNumberValue(); got != 1 {
		t.Fatalf("expected post buffer 1, got %v", got)
	}

	out, err = invoke(t, conn, "CreateWorkItem", map[string]any{
		"organization_id": id, "title": "A", "status": "ready",
		"ccr_hours_required": map[string]any{"dev_team": 4},
	})
	if err != nil {
		t.Fatalf("CreateWorkItem: %v", err)
	}
	item := out.GetFields()["id"].GetStringValue()

	out, err = invoke(t, conn, "CreateSchedule", map[string]any{
		"organization_id": id, "board_config_id": "brd-1", "work_item_ids": []any{item},
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	if got := out.GetFields()["time_unit_position"].GetNumberValue(); got != 0 {
		t.Fatalf("expected entry position 0, got %v", got)
	}

	out, err = invoke(t, conn, "AdvanceTimeUnit", map[string]any{"organization_id": id})
	if err != nil {
		t.Fatalf("AdvanceTimeUnit: %v", err)
	}
	if got := out.GetFields()["advanced_count"].GetNumberValue(); got != 1 {
		t.Fatalf("expected 1 advanced, got %v", got)
	}
}

func TestGRPC_ErrorDetails(t *testing.T) {
	ts := newTestServer(t)
	conn := dialBufconn(t, ts)

	_, err := invoke(t, conn, "GetWorkItem", map[string]any{"id": "wi-missing"})
	st, info := errorInfo(t, err)
	if st.Code() != codes.NotFound || info.GetReason() != api.CodeNotFound || info.GetDomain() != api.ErrorDomain {
		t.Fatalf("unexpected status %v / %+v", st.Code(), info)
	}

	_, err = invoke(t, conn, "CreateOrganization", map[string]any{"name": ""})
	st, info = errorInfo(t, err)
	if st.Code() != codes.InvalidArgument || info.GetReason() != api.CodeInvalidArgument {
		t.Fatalf("unexpected status %v / %+v", st.Code(), info)
	}
	var violations []*errdetails.BadRequest_FieldViolation
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			violations = br.GetFieldViolations()
		}
	}
	if len(violations) == 0 || violations[0].GetField() != "name" {
		t.Fatalf("expected a name violation, got %v", violations)
	}

	_, err = invoke(t, conn, "CreateOrganization", map[string]any{"nme": "typo"})
	st, _ = errorInfo(t, err)
	if st.Code() != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for unknown field, got %v", st.Code())
	}
}

func TestGRPC_Health(t *testing.T) {
	ts := newTestServer(t)
	conn := dialBufconn(t, ts)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestRecoveryInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/" + ServiceName + "/Panic"}
	_, err := RecoveryInterceptor(context.Background(), nil, info, func(context.Context, any) (any, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
}
