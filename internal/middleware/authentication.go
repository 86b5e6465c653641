package middleware

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/internal/handler"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	claimProjectID = "project_id"
	claimUsername  = "preferred_username"
)

func NewAuthentication(logger *slog.Logger, publicKey *rsa.PublicKey) AuthenticationMiddleware {
	return AuthenticationMiddleware{
		logger:    logger,
		publicKey: publicKey,
	}
}

// ParsePublicKey parses a PEM encoded RSA public key.
func ParsePublicKey(pem string) (*rsa.PublicKey, error) {
	key, err := jwk.ParseKey([]byte(pem), jwk.WithPEM(true))
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %v", err)
	}

	var publicKey rsa.PublicKey
	if err := key.Raw(&publicKey); err != nil {
		return nil, fmt.Errorf("public key isn't an RSA key: %v", err)
	}

	return &publicKey, nil
}

type AuthenticationMiddleware struct {
	logger    *slog.Logger
	publicKey *rsa.PublicKey
}

// TokenAuthentication verifies the bearer token and stores the [model.Principal] it carries in the
// Gin context and the request context.
func (m AuthenticationMiddleware) TokenAuthentication(c *gin.Context) {
	principal, err := m.parseRequest(c)
	if err != nil {
		m.logger.InfoContext(c.Request.Context(), "Token not valid", "error", err)
		_ = c.Error(errdef.NewUnauthorized("token not valid"))
		c.Abort()
		return
	}

	c.Set(handler.PrincipalKey, principal)
	c.Request = c.Request.WithContext(model.NewContextWithPrincipal(c.Request.Context(), principal))
	c.Next()
}

func (m AuthenticationMiddleware) parseRequest(c *gin.Context) (model.Principal, error) {
	tokenString, err := handler.GetTokenFromHttpAuthHeader(c)
	if err != nil {
		return model.Principal{}, err
	}

	token, err := jwt.ParseString(
		tokenString,
		jwt.WithKey(jwa.RS256, m.publicKey),
		jwt.WithValidate(true),
	)
	if err != nil {
		return model.Principal{}, err
	}

	return extractPrincipal(token)
}

func extractPrincipal(token jwt.Token) (model.Principal, error) {
	if token.Subject() == "" {
		return model.Principal{}, errors.New("subject not found in claims")
	}

	principal := model.Principal{UserID: token.Subject()}

	if value, ok := token.Get(claimUsername); ok {
		principal.Username, _ = value.(string)
	}

	if value, ok := token.Get(claimProjectID); ok {
		principal.ProjectID, _ = value.(string)
	}

	return principal, nil
}
