package expensesv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName = "expensekeeper.v1.ExpenseKeeper"

	ExpenseKeeper_Register_FullMethodName      = "/expensekeeper.v1.ExpenseKeeper/Register"
	ExpenseKeeper_Login_FullMethodName         = "/expensekeeper.v1.ExpenseKeeper/Login"
	ExpenseKeeper_CreateExpense_FullMethodName = "/expensekeeper.v1.ExpenseKeeper/CreateExpense"
	ExpenseKeeper_GetExpense_FullMethodName    = "/expensekeeper.v1.ExpenseKeeper/GetExpense"
	ExpenseKeeper_UpdateExpense_FullMethodName = "/expensekeeper.v1.ExpenseKeeper/UpdateExpense"
	ExpenseKeeper_DeleteExpense_FullMethodName = "/expensekeeper.v1.ExpenseKeeper/DeleteExpense"
	ExpenseKeeper_ListExpenses_FullMethodName  = "/expensekeeper.v1.ExpenseKeeper/ListExpenses"
	ExpenseKeeper_WatchExpense_FullMethodName  = "/expensekeeper.v1.ExpenseKeeper/WatchExpense"
)

// ExpenseKeeperClient is the client API for the ExpenseKeeper service.
type ExpenseKeeperClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	CreateExpense(ctx context.Context, in *CreateExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error)
	GetExpense(ctx context.Context, in *GetExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error)
	UpdateExpense(ctx context.Context, in *UpdateExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error)
	DeleteExpense(ctx context.Context, in *DeleteExpenseRequest, opts ...grpc.CallOption) (*DeleteExpenseResponse, error)
	ListExpenses(ctx context.Context, in *ListExpensesRequest, opts ...grpc.CallOption) (*ListExpensesResponse, error)
	WatchExpense(ctx context.Context, in *WatchExpenseRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ExpenseSnapshot], error)
}

type expenseKeeperClient struct {
	cc grpc.ClientConnInterface
}

func NewExpenseKeeperClient(cc grpc.ClientConnInterface) ExpenseKeeperClient {
	return &expenseKeeperClient{cc}
}

func callOpts(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *expenseKeeperClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	out := new(RegisterResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_Register_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_Login_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) CreateExpense(ctx context.Context, in *CreateExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error) {
	out := new(ExpenseResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_CreateExpense_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) GetExpense(ctx context.Context, in *GetExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error) {
	out := new(ExpenseResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_GetExpense_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) UpdateExpense(ctx context.Context, in *UpdateExpenseRequest, opts ...grpc.CallOption) (*ExpenseResponse, error) {
	out := new(ExpenseResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_UpdateExpense_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) DeleteExpense(ctx context.Context, in *DeleteExpenseRequest, opts ...grpc.CallOption) (*DeleteExpenseResponse, error) {
	out := new(DeleteExpenseResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_DeleteExpense_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) ListExpenses(ctx context.Context, in *ListExpensesRequest, opts ...grpc.CallOption) (*ListExpensesResponse, error) {
	out := new(ListExpensesResponse)
	if err := c.cc.Invoke(ctx, ExpenseKeeper_ListExpenses_FullMethodName, in, out, callOpts(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *expenseKeeperClient) WatchExpense(ctx context.Context, in *WatchExpenseRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ExpenseSnapshot], error) {
	stream, err := c.cc.NewStream(ctx, &ExpenseKeeper_ServiceDesc.Streams[0], ExpenseKeeper_WatchExpense_FullMethodName, callOpts(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchExpenseRequest, ExpenseSnapshot]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// ExpenseKeeper_WatchExpenseClient is the client side of WatchExpense.
type ExpenseKeeper_WatchExpenseClient = grpc.ServerStreamingClient[ExpenseSnapshot]

// ExpenseKeeperServer is the server API for the ExpenseKeeper service.
// Implementations must embed UnimplementedExpenseKeeperServer.
type ExpenseKeeperServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	CreateExpense(context.Context, *CreateExpenseRequest) (*ExpenseResponse, error)
	GetExpense(context.Context, *GetExpenseRequest) (*ExpenseResponse, error)
	UpdateExpense(context.Context, *UpdateExpenseRequest) (*ExpenseResponse, error)
	DeleteExpense(context.Context, *DeleteExpenseRequest) (*DeleteExpenseResponse, error)
	ListExpenses(context.Context, *ListExpensesRequest) (*ListExpensesResponse, error)
	WatchExpense(*WatchExpenseRequest, grpc.ServerStreamingServer[ExpenseSnapshot]) error
	mustEmbedUnimplementedExpenseKeeperServer()
}

// UnimplementedExpenseKeeperServer must be embedded by value.
type UnimplementedExpenseKeeperServer struct{}

func (UnimplementedExpenseKeeperServer) Register(context.Context, *RegisterRequest) (*RegisterResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Register not implemented")
}
func (UnimplementedExpenseKeeperServer) Login(context.Context, *LoginRequest) (*LoginResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedExpenseKeeperServer) CreateExpense(context.Context, *CreateExpenseRequest) (*ExpenseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateExpense not implemented")
}
func (UnimplementedExpenseKeeperServer) GetExpense(context.Context, *GetExpenseRequest) (*ExpenseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetExpense not implemented")
}
func (UnimplementedExpenseKeeperServer) UpdateExpense(context.Context, *UpdateExpenseRequest) (*ExpenseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateExpense not implemented")
}
func (UnimplementedExpenseKeeperServer) DeleteExpense(context.Context, *DeleteExpenseRequest) (*DeleteExpenseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteExpense not implemented")
}
func (UnimplementedExpenseKeeperServer) ListExpenses(context.Context, *ListExpensesRequest) (*ListExpensesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListExpenses not implemented")
}
func (UnimplementedExpenseKeeperServer) WatchExpense(*WatchExpenseRequest, grpc.ServerStreamingServer[ExpenseSnapshot]) error {
	return status.Error(codes.Unimplemented, "method WatchExpense not implemented")
}
func (UnimplementedExpenseKeeperServer) mustEmbedUnimplementedExpenseKeeperServer() {}

// RegisterExpenseKeeperServer registers srv on s.
func RegisterExpenseKeeperServer(s grpc.ServiceRegistrar, srv ExpenseKeeperServer) {
	s.RegisterService(&ExpenseKeeper_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](
	method string, call func(ExpenseKeeperServer, context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExpenseKeeperServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExpenseKeeperServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func _ExpenseKeeper_WatchExpense_Handler(srv any, stream grpc.ServerStream) error {
	m := new(WatchExpenseRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ExpenseKeeperServer).WatchExpense(m, &grpc.GenericServerStream[WatchExpenseRequest, ExpenseSnapshot]{ServerStream: stream})
}

// ExpenseKeeper_WatchExpenseServer is the server side of WatchExpense.
type ExpenseKeeper_WatchExpenseServer = grpc.ServerStreamingServer[ExpenseSnapshot]

// ExpenseKeeper_ServiceDesc is the grpc.ServiceDesc for the ExpenseKeeper service.
var ExpenseKeeper_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExpenseKeeperServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler(ExpenseKeeper_Register_FullMethodName, ExpenseKeeperServer.Register)},
		{MethodName: "Login", Handler: unaryHandler(ExpenseKeeper_Login_FullMethodName, ExpenseKeeperServer.Login)},
		{MethodName: "CreateExpense", Handler: unaryHandler(ExpenseKeeper_CreateExpense_FullMethodName, ExpenseKeeperServer.CreateExpense)},
		{MethodName: "GetExpense", Handler: unaryHandler(ExpenseKeeper_GetExpense_FullMethodName, ExpenseKeeperServer.GetExpense)},
		{MethodName: "UpdateExpense", Handler: unaryHandler(ExpenseKeeper_UpdateExpense_FullMethodName, ExpenseKeeperServer.UpdateExpense)},
		{MethodName: "DeleteExpense", Handler: unaryHandler(ExpenseKeeper_DeleteExpense_FullMethodName, ExpenseKeeperServer.DeleteExpense)},
		{MethodName: "ListExpenses", Handler: unaryHandler(ExpenseKeeper_ListExpenses_FullMethodName, ExpenseKeeperServer.ListExpenses)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchExpense",
			Handler:       _ExpenseKeeper_WatchExpense_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "internal/api/expensesv1",
}
