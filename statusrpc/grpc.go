package statusrpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "statusrpc.StatusService"

// RegisterStatusServiceServer registers srv's methods against s, the way
// protoc-gen-go-grpc's generated RegisterXServer does.
func RegisterStatusServiceServer(s grpc.ServiceRegistrar, srv Server) {
	s.RegisterService(&statusServiceDesc, srv)
}

var statusServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListOrders", Handler: handleListOrders},
		{MethodName: "ShowOrder", Handler: handleShowOrder},
		{MethodName: "ForceCancel", Handler: handleForceCancel},
		{MethodName: "ReplayFrom", Handler: handleReplayFrom},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "statusrpc.proto",
}

func handleListOrders(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ListOrders"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ListOrders(ctx, req.(*ListOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleShowOrder(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ShowOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ShowOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ShowOrder"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ShowOrder(ctx, req.(*ShowOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleForceCancel(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ForceCancelRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ForceCancel(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ForceCancel"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ForceCancel(ctx, req.(*ForceCancelRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func handleReplayFrom(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReplayFromRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).ReplayFrom(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/ReplayFrom"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Server).ReplayFrom(ctx, req.(*ReplayFromRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is the statusrpc.StatusService client stub, mirroring
// protoc-gen-go-grpc's generated XClient.
type Client interface {
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	ShowOrder(ctx context.Context, in *ShowOrderRequest, opts ...grpc.CallOption) (*ShowOrderResponse, error)
	ForceCancel(ctx context.Context, in *ForceCancelRequest, opts ...grpc.CallOption) (*ForceCancelResponse, error)
	ReplayFrom(ctx context.Context, in *ReplayFromRequest, opts ...grpc.CallOption) (*ReplayFromResponse, error)
}

type client struct {
	cc grpc.ClientConnInterface
}

// NewClient constructs a Client bound to cc.
func NewClient(cc grpc.ClientConnInterface) Client {
	return &client{cc: cc}
}

func (c *client) invoke(ctx context.Context, method string, in, out interface{}, opts ...grpc.CallOption) error {
	opts = append(opts, grpc.CallContentSubtype(jsonCodecName))
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *client) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, "ListOrders", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) ShowOrder(ctx context.Context, in *ShowOrderRequest, opts ...grpc.CallOption) (*ShowOrderResponse, error) {
	out := new(ShowOrderResponse)
	if err := c.invoke(ctx, "ShowOrder", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) ForceCancel(ctx context.Context, in *ForceCancelRequest, opts ...grpc.CallOption) (*ForceCancelResponse, error) {
	out := new(ForceCancelResponse)
	if err := c.invoke(ctx, "ForceCancel", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) ReplayFrom(ctx context.Context, in *ReplayFromRequest, opts ...grpc.CallOption) (*ReplayFromResponse, error) {
	out := new(ReplayFromResponse)
	if err := c.invoke(ctx, "ReplayFrom", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
