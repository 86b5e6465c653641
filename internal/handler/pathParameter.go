package handler

import (
	"net/http"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func GetPathParameter(c *gin.Context, parameter string) (uuid.UUID, bool) {
	idParam := c.Param(parameter)
	id, err := uuid.Parse(idParam)
	if err != nil {
		_ = c.AbortWithError(http.StatusBadRequest, errdef.NewBadRequest("error parsing %q: %v", parameter, err))
		return uuid.Nil, false
	}
	return id, true
}
