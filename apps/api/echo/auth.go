package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// Academy roles, carried in the token's app_metadata.
const (
	RoleAdmin = "admin"
	RoleCoach = "coach"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims of a JWT issued by the hosted auth service.
type Claims struct {
	jwt.StandardClaims
	Email       string      `json:"email,omitempty"`
	Role        string      `json:"role,omitempty"` // auth role, e.g. "authenticated"
	AppMetadata AppMetadata `json:"app_metadata"`
}

type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// AcademyRole returns the back-office role of the caller (admin | coach), if any.
func (c Claims) AcademyRole() string { return c.AppMetadata.Role }

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Email: c.Email, Role: c.AcademyRole()}
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// NewClaims builds claims for an academy user, valid for ttl.
func NewClaims(conf *core.Config, subject, email, role string, ttl time.Duration) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			Audience:  conf.JWTAudience,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
		},
		Email:       email,
		Role:        "authenticated",
		AppMetadata: AppMetadata{Role: role},
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(middleware.AlgorithmHS256), claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		for _, role := range roles {
			if claims.AcademyRole() == role {
				return true
			}
		}
	}
	return false
}
