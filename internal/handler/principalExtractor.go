package handler

import (
	"errors"

	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

// PrincipalKey is the gin context key the authentication middleware stores the principal under.
const PrincipalKey = "principal"

func GetPrincipalFromContext(c *gin.Context) (model.Principal, error) {
	data, exists := c.Get(PrincipalKey)
	if !exists {
		return model.Principal{}, errors.New("principal not found on context")
	}

	principal, ok := data.(model.Principal)
	if !ok {
		return model.Principal{}, errors.New("failed to parse principal data")
	}
	return principal, nil
}
