package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/sally802528/grade-query-education-system/internal/auth"
	"github.com/sally802528/grade-query-education-system/internal/model"
)

// methodRoles maps guarded methods to the role they require. An empty role
// accepts any valid token; methods not listed pass through unguarded.
var methodRoles = map[string]model.Role{
	WhoAmIMethod:  "",
	GetUserMethod: model.RoleTeacher,
}

func NewAuthUnaryInterceptor(guard *auth.Guard) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		role, guarded := methodRoles[info.FullMethod]
		if !guarded {
			return handler(ctx, req)
		}

		start := time.Now()
		request := auth.Request{AuthHeader: authorizationFromMetadata(ctx)}
		var decision auth.Decision
		if role == "" {
			decision = guard.Authenticate(request)
		} else {
			decision = guard.Check(request, role)
		}
		auth.Observe(role, decision, time.Since(start))

		if !decision.Allowed() {
			return nil, statusFromDecision(decision)
		}
		return handler(auth.WithIdentity(ctx, *decision.Identity), req)
	}
}

func statusFromDecision(decision auth.Decision) error {
	if errors.Is(decision.Err, auth.ErrForbidden) {
		return status.Error(codes.PermissionDenied, decision.Message)
	}
	return status.Error(codes.Unauthenticated, decision.Message)
}

func authorizationFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
