package cluster

import (
	"context"
	"net/http"

	"github.com/dhis2-sre/mq-manager/internal/handler"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type clusterService interface {
	Create(ctx context.Context, principal model.Principal, request CreateRequest) (model.Cluster, error)
	Find(ctx context.Context, principal model.Principal, id uuid.UUID) (model.Cluster, error)
	List(ctx context.Context, principal model.Principal, marker string, limit int) (Page, error)
	Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error
}

func NewHandler(service clusterService) Handler {
	return Handler{service}
}

type Handler struct {
	clusterService clusterService
}

// Create cluster
func (h Handler) Create(c *gin.Context) {
	// swagger:route POST /clusters createCluster
	//
	// Create cluster
	//
	// Request a new broker cluster. The cluster is returned in state REQUESTED and provisioned in the background.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   201: Cluster
	//   400: Error
	//   401: Error
	//   403: Error
	//   415: Error
	//   503: Error
	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	var request CreateRequest
	if err := handler.DataBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	cluster, err := h.clusterService.Create(c.Request.Context(), principal, request)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, cluster)
}

// Find cluster by id
func (h Handler) Find(c *gin.Context) {
	// swagger:route GET /clusters/{id} findCluster
	//
	// Find cluster
	//
	// Find a cluster by its id
	//
	// responses:
	//   200: Cluster
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//
	// security:
	//   oauth2:
	id, ok := handler.GetPathParameter(c, "id")
	if !ok {
		return
	}

	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	cluster, err := h.clusterService.Find(c.Request.Context(), principal, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, cluster)
}

type ListRequest struct {
	Marker string `form:"marker"`
	Limit  int    `form:"limit" binding:"omitempty,min=1"`
}

// List clusters
func (h Handler) List(c *gin.Context) {
	// swagger:route GET /clusters listClusters
	//
	// List clusters
	//
	// List the clusters of the callers project, oldest first. Pass the returned next marker to get the following page.
	//
	// responses:
	//   200: ClusterPage
	//   400: Error
	//   401: Error
	//   403: Error
	//
	// security:
	//   oauth2:
	var request ListRequest
	if err := handler.QueryBinder(c, &request); err != nil {
		_ = c.Error(err)
		return
	}

	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := h.clusterService.List(c.Request.Context(), principal, request.Marker, request.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Delete cluster
func (h Handler) Delete(c *gin.Context) {
	// swagger:route DELETE /clusters/{id} deleteCluster
	//
	// Delete cluster
	//
	// Start deleting a cluster. Its nodes are removed in the background.
	//
	// security:
	//   oauth2:
	//
	// responses:
	//   202:
	//   400: Error
	//   401: Error
	//   403: Error
	//   404: Error
	//   409: Error
	id, ok := handler.GetPathParameter(c, "id")
	if !ok {
		return
	}

	principal, err := handler.GetPrincipalFromContext(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	err = h.clusterService.Delete(c.Request.Context(), principal, id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Status(http.StatusAccepted)
}
