package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	actorContextKey = "reservas_actor"
	bearerPrefix    = "Bearer "
)

var errMissingBearer = errors.New("missing bearer token")

// Claims are the identity claims the API reads from a bearer token.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs claims for subject with HS256.
func IssueToken(secret string, issuer string, subject string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type authenticator struct {
	secret []byte
	issuer string
}

func (auth authenticator) parse(header string) (reservas.Actor, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return reservas.Actor{}, errMissingBearer
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if auth.issuer != "" {
		options = append(options, jwt.WithIssuer(auth.issuer))
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return auth.secret, nil
	}, options...)
	if err != nil {
		return reservas.Actor{}, err
	}
	userID, err := reservas.NewUserID(claims.Subject)
	if err != nil {
		return reservas.Actor{}, fmt.Errorf("subject: %w", err)
	}
	actor := reservas.Actor{UserID: userID, Role: reservas.ParseRole(claims.Role)}
	if contact, err := reservas.NewContact(claims.Name, claims.Email, claims.Phone); err == nil {
		actor.Contact = contact
	}
	return actor, nil
}

// requireActor rejects requests without a valid bearer token.
func (auth authenticator) requireActor() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		actor, err := auth.parse(ctx.GetHeader("Authorization"))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "Autenticação necessária."))
			return
		}
		ctx.Set(actorContextKey, actor)
		ctx.Next()
	}
}

func actorFrom(ctx *gin.Context) reservas.Actor {
	value, ok := ctx.Get(actorContextKey)
	if !ok {
		return reservas.Actor{}
	}
	actor, _ := value.(reservas.Actor)
	return actor
}
