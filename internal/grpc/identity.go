package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/model"
	"github.com/sally802528/grade-query-education-system/internal/repository"
)

const (
	ServiceName   = "classroom.identity.v1.IdentityQuery"
	WhoAmIMethod  = "/" + ServiceName + "/WhoAmI"
	GetUserMethod = "/" + ServiceName + "/GetUser"
)

type UserLookup interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
}

type IdentityServer struct {
	users UserLookup
}

func NewIdentityServer(users UserLookup) *IdentityServer {
	return &IdentityServer{users: users}
}

// WhoAmI echoes the identity the interceptor attached.
func (s *IdentityServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, auth.MessageMissingToken)
	}
	return structpb.NewStruct(map[string]interface{}{
		"id":   identity.ID,
		"role": string(identity.Role),
	})
}

func (s *IdentityServer) GetUser(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := req.GetFields()["userId"].GetStringValue()
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId required")
	}
	user, err := s.users.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, status.Error(codes.NotFound, "user not found")
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "lookup failed")
	}

	var class interface{}
	if user.Class != nil {
		class = *user.Class
	}
	return structpb.NewStruct(map[string]interface{}{
		"userId": user.UserID,
		"name":   user.Name,
		"role":   string(user.Role),
		"class":  class,
	})
}

type identityQueryServer interface {
	WhoAmI(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var identityQueryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*identityQueryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "classroom/identity/v1/identity.proto",
}

func RegisterIdentityServer(registrar grpc.ServiceRegistrar, srv *IdentityServer) {
	registrar.RegisterService(&identityQueryServiceDesc, srv)
}

func whoAmIHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(identityQueryServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: WhoAmIMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(identityQueryServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getUserHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(identityQueryServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetUserMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(identityQueryServer).GetUser(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// IdentityClient calls IdentityQuery over an existing connection.
type IdentityClient struct {
	conn grpc.ClientConnInterface
}

func NewIdentityClient(conn grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{conn: conn}
}

func (c *IdentityClient) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, WhoAmIMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IdentityClient) GetUser(ctx context.Context, userID string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"userId": userID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, GetUserMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
