package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sally802528/grade-query-education-system/internal/model"
)

type Claims struct {
	UserID string     `json:"id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Outcome classifies a token verification attempt.
type Outcome int

const (
	Valid Outcome = iota
	Expired
	Invalid
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Invalid:
		return "invalid"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Verification carries Claims only when Outcome is Valid.
type Verification struct {
	Outcome Outcome
	Claims  *Claims
}

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs an HS256 access token for id/role and returns it with its expiry.
func (i *Issuer) Issue(id string, role model.Role) (string, time.Time, error) {
	if id == "" {
		return "", time.Time{}, errors.New("missing_subject")
	}
	if !role.Valid() {
		return "", time.Time{}, errors.New("invalid_role")
	}
	now := i.now().UTC()
	expiresAt := jwt.NewNumericDate(now.Add(i.ttl))
	claims := Claims{
		UserID: id,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   id,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt.Time, nil
}

type Verifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer, now: time.Now}
}

// Verify checks algorithm, signature, issuer and expiry before trusting any
// claim. A token is expired from the exact second of its exp claim onwards.
func (v *Verifier) Verify(tokenString string) Verification {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, options...)
	if err != nil {
		return Verification{Outcome: classify(err)}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Verification{Outcome: Invalid}
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return Verification{Outcome: Invalid}
	}
	return Verification{Outcome: Valid, Claims: claims}
}

func classify(err error) Outcome {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return Malformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return Expired
	default:
		return Invalid
	}
}
