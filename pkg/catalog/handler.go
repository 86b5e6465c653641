package catalog

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/mq-manager/internal/handler"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/gin-gonic/gin"
)

type catalogResolver interface {
	ListFlavors(ctx context.Context, projectID string) ([]model.Flavor, error)
	ListNetworks(ctx context.Context, projectID string) ([]model.Network, error)
	FindFlavor(ctx context.Context, projectID, id string) (model.Flavor, error)
}

func NewHandler(resolver catalogResolver) Handler {
	return Handler{resolver}
}

type Handler struct {
	resolver catalogResolver
}

// ListFlavors lists flavors
func (h Handler) ListFlavors(c *gin.Context) {
	// swagger:route GET /flavors listFlavors
	//
	// List flavors
	//
	// List the flavors a cluster can be created with, smallest first
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Flavors
	//   401: Error
	//   403: Error
	//   503: Error
	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	flavors, err := h.resolver.ListFlavors(c.Request.Context(), principal.ProjectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, flavors)
}

// FindFlavor finds a flavor by id
func (h Handler) FindFlavor(c *gin.Context) {
	// swagger:route GET /flavors/{id} findFlavorById
	//
	// Find flavor
	//
	// Find a flavor by its id
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Flavor
	//   401: Error
	//   403: Error
	//   404: Error
	//   503: Error
	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	flavor, err := h.resolver.FindFlavor(c.Request.Context(), principal.ProjectID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, flavor)
}

// ListNetworks lists networks
func (h Handler) ListNetworks(c *gin.Context) {
	// swagger:route GET /networks listNetworks
	//
	// List networks
	//
	// List the networks visible to the project of the caller
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   200: Networks
	//   401: Error
	//   403: Error
	//   503: Error
	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	networks, err := h.resolver.ListNetworks(c.Request.Context(), principal.ProjectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, networks)
}
