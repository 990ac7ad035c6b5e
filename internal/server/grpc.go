package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/model"
)

// ServiceName is the fully qualified gRPC service name. Every method takes
// and returns a google.protobuf.Struct holding the same JSON document the
// HTTP API uses.
const ServiceName = "dbr.v1.SchedulingService"

// NewGRPCServer creates a gRPC server with standard interceptors and
// registers the scheduling service and health checking.
func NewGRPCServer(s *Server) *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
		),
	)

	srv.RegisterService(&serviceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		method("Health", (*Server).Health),

		method("CreateOrganization", (*Server).CreateOrganization),
		method("GetOrganization", (*Server).GetOrganization),
		method("ListOrganizations", (*Server).ListOrganizations),

		method("CreateCCR", (*Server).CreateCCR),
		method("GetCCR", (*Server).GetCCR),
		method("ListCCRs", (*Server).ListCCRs),

		method("CreateBoard", (*Server).CreateBoard),
		method("GetBoard", (*Server).GetBoard),
		method("ListBoards", (*Server).ListBoards),
		method("BoardStatus", (*Server).BoardStatus),
		method("BoardAnalytics", (*Server).BoardAnalytics),

		method("CreateWorkItem", (*Server).CreateWorkItem),
		method("GetWorkItem", (*Server).GetWorkItem),
		method("ListWorkItems", (*Server).ListWorkItems),
		method("UpdateWorkItem", (*Server).UpdateWorkItem),
		method("ReadyWorkItems", (*Server).ReadyWorkItems),
		method("BlockedWorkItems", (*Server).BlockedWorkItems),

		method("AddDependency", (*Server).AddDependency),
		method("RemoveDependency", (*Server).RemoveDependency),
		method("ListDependencies", (*Server).ListDependencies),
		method("ValidateDependency", (*Server).ValidateDependency),
		method("IsReady", (*Server).IsReady),
		method("DependencyChain", (*Server).DependencyChain),

		method("CreateSchedule", (*Server).CreateSchedule),
		method("GetSchedule", (*Server).GetSchedule),
		method("ListSchedules", (*Server).ListSchedules),
		method("AdvanceTimeUnit", (*Server).AdvanceTimeUnit),

		method("ListEvents", (*Server).ListEvents),
	},
	Streams:  []grpc.StreamDesc{},
}

// method adapts a Server operation to a unary gRPC method. The request
// Struct is decoded into Req through its JSON form and the response is
// encoded the same way.
func method[Req, Resp any](name string, call func(*Server, context.Context, *Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handler := func(ctx context.Context, req any) (any, error) {
				var r Req
				if err := fromStruct(req.(*structpb.Struct), &r); err != nil {
					return nil, grpcError(err)
				}
				resp, err := call(srv.(*Server), ctx, &r)
				if err != nil {
					return nil, grpcError(err)
				}
				out, err := toStruct(resp)
				if err != nil {
					return nil, grpcError(err)
				}
				return out, nil
			}
			if interceptor == nil {
				return handler(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// fromStruct decodes a request Struct into v. Unknown fields are rejected
// like they are on the HTTP API.
func fromStruct(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fieldError("body", "invalid request: "+err.Error())
	}
	return nil
}

// toStruct encodes a response value as a Struct.
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

// grpcError converts a service error into a status carrying an ErrorInfo
// whose reason is the wire code. Validation errors also carry a BadRequest
// with one violation per field.
func grpcError(err error) error {
	code := api.Classify(err)
	msg := err.Error()
	if code == api.CodeInternal {
		msg = "internal server error"
	}
	st := status.New(api.GRPCCode(code), msg)

	info := &errdetails.ErrorInfo{Reason: code, Domain: api.ErrorDomain}
	var ce *model.CircularDependencyError
	if errors.As(err, &ce) && len(ce.Path) > 0 {
		info.Metadata = map[string]string{"path": strings.Join(ce.Path, ",")}
	}
	details := []protoadapt.MessageV1{info}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		br := &errdetails.BadRequest{}
		for _, fe := range ve.Errors {
			br.FieldViolations = append(br.FieldViolations, &errdetails.BadRequest_FieldViolation{
				Field:       fe.Field,
				Description: fe.Message,
			})
		}
		details = append(details, br)
	}

	withDetails, derr := st.WithDetails(details...)
	if derr != nil {
		return st.Err()
	}
	return withDetails.Err()
}
