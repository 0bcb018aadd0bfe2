package adminrpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name, matching the
// convention the teacher's protoc-generated apiv1 package would have
// produced for a "package ragweb.adminrpc; service AdminService" file.
const serviceName = "ragweb.adminrpc.AdminService"

// AdminServiceServer is implemented by a Controller or Agent daemon's
// admin-plane handler (see Server in server.go).
type AdminServiceServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Shutdown(context.Context, *ShutdownRequest) (*ShutdownResponse, error)
	ListActiveJobs(context.Context, *ListActiveJobsRequest) (*ListActiveJobsResponse, error)
	ListActiveTasks(context.Context, *ListActiveTasksRequest) (*ListActiveTasksResponse, error)
	PrepareForReboot(context.Context, *PrepareForRebootRequest) (*PrepareForRebootResponse, error)
	GetFlag(context.Context, *GetFlagRequest) (*GetFlagResponse, error)
	SetFlag(context.Context, *SetFlagRequest) (*SetFlagResponse, error)
	ListFlags(context.Context, *ListFlagsRequest) (*ListFlagsResponse, error)
	ShowManifest(context.Context, *ShowManifestRequest) (*ShowManifestResponse, error)
	DiffWorkspace(context.Context, *DiffWorkspaceRequest) (*DiffWorkspaceResponse, error)
}

// AdminServiceClient is the stub ragctl dials against.
type AdminServiceClient interface {
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error)
	ListActiveJobs(ctx context.Context, in *ListActiveJobsRequest, opts ...grpc.CallOption) (*ListActiveJobsResponse, error)
	ListActiveTasks(ctx context.Context, in *ListActiveTasksRequest, opts ...grpc.CallOption) (*ListActiveTasksResponse, error)
	PrepareForReboot(ctx context.Context, in *PrepareForRebootRequest, opts ...grpc.CallOption) (*PrepareForRebootResponse, error)
	GetFlag(ctx context.Context, in *GetFlagRequest, opts ...grpc.CallOption) (*GetFlagResponse, error)
	SetFlag(ctx context.Context, in *SetFlagRequest, opts ...grpc.CallOption) (*SetFlagResponse, error)
	ListFlags(ctx context.Context, in *ListFlagsRequest, opts ...grpc.CallOption) (*ListFlagsResponse, error)
	ShowManifest(ctx context.Context, in *ShowManifestRequest, opts ...grpc.CallOption) (*ShowManifestResponse, error)
	DiffWorkspace(ctx context.Context, in *DiffWorkspaceRequest, opts ...grpc.CallOption) (*DiffWorkspaceResponse, error)
}

type adminServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAdminServiceClient wraps an established grpc.ClientConn.
func NewAdminServiceClient(cc grpc.ClientConnInterface) AdminServiceClient {
	return &adminServiceClient{cc: cc}
}

// invoke runs one unary call, replacing the near-identical decode
// boilerplate each adminServiceClient method would otherwise repeat.
func invoke[TReq any, TResp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *TReq, opts []grpc.CallOption) (*TResp, error) {
	out := new(TResp)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *adminServiceClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusRequest, StatusResponse](ctx, c.cc, "Status", in, opts)
}

func (c *adminServiceClient) Shutdown(ctx context.Context, in *ShutdownRequest, opts ...grpc.CallOption) (*ShutdownResponse, error) {
	return invoke[ShutdownRequest, ShutdownResponse](ctx, c.cc, "Shutdown", in, opts)
}

func (c *adminServiceClient) ListActiveJobs(ctx context.Context, in *ListActiveJobsRequest, opts ...grpc.CallOption) (*ListActiveJobsResponse, error) {
	return invoke[ListActiveJobsRequest, ListActiveJobsResponse](ctx, c.cc, "ListActiveJobs", in, opts)
}

func (c *adminServiceClient) ListActiveTasks(ctx context.Context, in *ListActiveTasksRequest, opts ...grpc.CallOption) (*ListActiveTasksResponse, error) {
	return invoke[ListActiveTasksRequest, ListActiveTasksResponse](ctx, c.cc, "ListActiveTasks", in, opts)
}

func (c *adminServiceClient) PrepareForReboot(ctx context.Context, in *PrepareForRebootRequest, opts ...grpc.CallOption) (*PrepareForRebootResponse, error) {
	return invoke[PrepareForRebootRequest, PrepareForRebootResponse](ctx, c.cc, "PrepareForReboot", in, opts)
}

func (c *adminServiceClient) GetFlag(ctx context.Context, in *GetFlagRequest, opts ...grpc.CallOption) (*GetFlagResponse, error) {
	return invoke[GetFlagRequest, GetFlagResponse](ctx, c.cc, "GetFlag", in, opts)
}

func (c *adminServiceClient) SetFlag(ctx context.Context, in *SetFlagRequest, opts ...grpc.CallOption) (*SetFlagResponse, error) {
	return invoke[SetFlagRequest, SetFlagResponse](ctx, c.cc, "SetFlag", in, opts)
}

func (c *adminServiceClient) ListFlags(ctx context.Context, in *ListFlagsRequest, opts ...grpc.CallOption) (*ListFlagsResponse, error) {
	return invoke[ListFlagsRequest, ListFlagsResponse](ctx, c.cc, "ListFlags", in, opts)
}

func (c *adminServiceClient) ShowManifest(ctx context.Context, in *ShowManifestRequest, opts ...grpc.CallOption) (*ShowManifestResponse, error) {
	return invoke[ShowManifestRequest, ShowManifestResponse](ctx, c.cc, "ShowManifest", in, opts)
}

func (c *adminServiceClient) DiffWorkspace(ctx context.Context, in *DiffWorkspaceRequest, opts ...grpc.CallOption) (*DiffWorkspaceResponse, error) {
	return invoke[DiffWorkspaceRequest, DiffWorkspaceResponse](ctx, c.cc, "DiffWorkspace", in, opts)
}

// unaryHandler builds a grpc.MethodDesc handler for one AdminService
// RPC, replacing the near-identical decode/invoke function each method
// previously needed written out by hand.
func unaryHandler[TReq any, TResp any](method string, call func(AdminServiceServer, context.Context, *TReq) (*TResp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(TReq)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AdminServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AdminServiceServer), ctx, req.(*TReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc is the hand-maintained grpc.ServiceDesc a protoc-generated
// file would normally emit.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unaryHandler("Status", AdminServiceServer.Status)},
		{MethodName: "Shutdown", Handler: unaryHandler("Shutdown", AdminServiceServer.Shutdown)},
		{MethodName: "ListActiveJobs", Handler: unaryHandler("ListActiveJobs", AdminServiceServer.ListActiveJobs)},
		{MethodName: "ListActiveTasks", Handler: unaryHandler("ListActiveTasks", AdminServiceServer.ListActiveTasks)},
		{MethodName: "PrepareForReboot", Handler: unaryHandler("PrepareForReboot", AdminServiceServer.PrepareForReboot)},
		{MethodName: "GetFlag", Handler: unaryHandler("GetFlag", AdminServiceServer.GetFlag)},
		{MethodName: "SetFlag", Handler: unaryHandler("SetFlag", AdminServiceServer.SetFlag)},
		{MethodName: "ListFlags", Handler: unaryHandler("ListFlags", AdminServiceServer.ListFlags)},
		{MethodName: "ShowManifest", Handler: unaryHandler("ShowManifest", AdminServiceServer.ShowManifest)},
		{MethodName: "DiffWorkspace", Handler: unaryHandler("DiffWorkspace", AdminServiceServer.DiffWorkspace)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/adminrpc/service.go",
}

// RegisterAdminServiceServer wires srv onto an existing grpc.Server,
// mirroring the teacher's generated RegisterDaemonServiceServer.
func RegisterAdminServiceServer(s grpc.ServiceRegistrar, srv AdminServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
