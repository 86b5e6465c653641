package handler

import (
	"github.com/dhis2-sre/mq-manager/internal/errdef"

	"github.com/gin-gonic/gin"
)

func DataBinder(c *gin.Context, req any) error {
	if c.ContentType() != "application/json" {
		return errdef.NewUnsupportedMediaType("%s only accepts content of type application/json", c.FullPath())
	}

	if err := c.ShouldBindJSON(req); err != nil {
		return errdef.NewBadRequest("error binding data: %v", err)
	}

	return nil
}

// QueryBinder binds and validates query parameters.
func QueryBinder(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return errdef.NewBadRequest("error binding query: %v", err)
	}

	return nil
}
