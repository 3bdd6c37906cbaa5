package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	MessageMissingToken     = "未授權，無 Token"
	MessageInvalidToken     = "Token 無效或已過期"
	MessageForbidden        = "無權限存取"
	MessageTeacherForbidden = "無權限存取：僅限教師"
)

// Identity is the request-scoped {id, role} handed to resource handlers.
type Identity struct {
	ID   string
	Role model.Role
}

// Request is everything the guard looks at. An empty AuthHeader means the
// header was absent.
type Request struct {
	AuthHeader string
}

// Decision is either a rejection (Status, Message, Err set) or an accepted
// Identity. Reason is a stable label for metrics and logs.
type Decision struct {
	Status   int
	Message  string
	Err      error
	Reason   string
	Identity *Identity
}

func (d Decision) Allowed() bool {
	return d.Identity != nil
}

type TokenVerifier interface {
	Verify(token string) Verification
}

type Guard struct {
	verifier TokenVerifier
}

func NewGuard(verifier TokenVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authenticate validates the bearer token without any role requirement.
func (g *Guard) Authenticate(req Request) Decision {
	token, ok := BearerToken(req.AuthHeader)
	if !ok {
		return reject(http.StatusUnauthorized, MessageMissingToken, ErrUnauthenticated, "missing_token")
	}

	result := g.verifier.Verify(token)
	switch result.Outcome {
	case Valid:
		if result.Claims == nil {
			return reject(http.StatusUnauthorized, MessageInvalidToken, ErrUnauthenticated, "invalid_token")
		}
		return Decision{
			Status:   http.StatusOK,
			Reason:   "allowed",
			Identity: &Identity{ID: result.Claims.UserID, Role: result.Claims.Role},
		}
	case Expired:
		return reject(http.StatusUnauthorized, MessageInvalidToken, ErrUnauthenticated, "expired_token")
	case Malformed:
		return reject(http.StatusUnauthorized, MessageInvalidToken, ErrUnauthenticated, "malformed_token")
	default:
		return reject(http.StatusUnauthorized, MessageInvalidToken, ErrUnauthenticated, "invalid_token")
	}
}

// Check authenticates the request and requires the token role to equal role.
func (g *Guard) Check(req Request, role model.Role) Decision {
	decision := g.Authenticate(req)
	if !decision.Allowed() {
		return decision
	}
	if decision.Identity.Role != role {
		return reject(http.StatusForbidden, forbiddenMessage(role), ErrForbidden, "forbidden")
	}
	return decision
}

func forbiddenMessage(role model.Role) string {
	if role == model.RoleTeacher {
		return MessageTeacherForbidden
	}
	return MessageForbidden
}

func reject(status int, message string, err error, reason string) Decision {
	return Decision{Status: status, Message: message, Err: err, Reason: reason}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
