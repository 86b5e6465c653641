package middleware

import (
	"log/slog"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/internal/handler"
	"github.com/gin-gonic/gin"
)

func NewAuthorization(logger *slog.Logger) AuthorizationMiddleware {
	return AuthorizationMiddleware{logger: logger}
}

type AuthorizationMiddleware struct {
	logger *slog.Logger
}

// RequireProject rejects principals whose token isn't scoped to a project. Every cluster, flavor
// and network is owned by a project so there is nothing such a caller may see.
func (m AuthorizationMiddleware) RequireProject(c *gin.Context) {
	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(errdef.NewUnauthorized("principal not found"))
		c.Abort()
		return
	}

	if principal.ProjectID == "" {
		m.logger.WarnContext(c.Request.Context(), "Principal without project tried to access project scoped endpoint")
		_ = c.Error(errdef.NewForbidden("token isn't scoped to a project"))
		c.Abort()
		return
	}

	c.Next()
}
