package cluster

import (
	"context"
	"strings"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// MaxPageSize bounds the number of clusters returned by a single list request.
const MaxPageSize = 100

type clusterRepository interface {
	Create(ctx context.Context, cluster *model.Cluster) error
	Find(ctx context.Context, id uuid.UUID, projectID string) (model.Cluster, error)
	List(ctx context.Context, projectID string, marker *uuid.UUID, limit int) ([]model.Cluster, bool, error)
}

type catalogResolver interface {
	FindFlavor(ctx context.Context, projectID, id string) (model.Flavor, error)
	FindNetwork(ctx context.Context, projectID, id string) (model.Network, error)
}

type credentialSealer interface {
	Seal(plaintext string) ([]byte, error)
}

type orchestrator interface {
	Provision(ctx context.Context, cluster model.Cluster)
	Teardown(ctx context.Context, cluster model.Cluster) error
}

func NewService(repository clusterRepository, resolver catalogResolver, sealer credentialSealer, orchestrator orchestrator, validate *validator.Validate, pageSize, maxSize int) *Service {
	return &Service{
		repository:   repository,
		resolver:     resolver,
		sealer:       sealer,
		orchestrator: orchestrator,
		validate:     validate,
		pageSize:     min(pageSize, MaxPageSize),
		maxSize:      maxSize,
	}
}

type Service struct {
	repository   clusterRepository
	resolver     catalogResolver
	sealer       credentialSealer
	orchestrator orchestrator
	validate     *validator.Validate
	pageSize     int
	// maxSize bounds the number of nodes of a single cluster
	maxSize int
}

type CreateRequest struct {
	Name            string `json:"name" validate:"required,max=80"`
	Flavor          string `json:"flavor" validate:"required"`
	Network         string `json:"network" validate:"required"`
	Size            int    `json:"size" validate:"min=1"`
	Username        string `json:"username" validate:"required,max=80,noWhitespace"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
}

// Create validates the request against the catalog, stores the cluster and hands it to the
// orchestrator. It returns as soon as the cluster is stored.
func (s Service) Create(ctx context.Context, principal model.Principal, request CreateRequest) (model.Cluster, error) {
	request.Name = strings.TrimSpace(request.Name)
	if err := s.validate.StructCtx(ctx, request); err != nil {
		return model.Cluster{}, errdef.NewInvalidSpec("invalid cluster request: %v", err)
	}
	if request.Size > s.maxSize {
		return model.Cluster{}, errdef.NewInvalidSpec("size must not exceed %d, got %d", s.maxSize, request.Size)
	}

	flavor, err := s.resolver.FindFlavor(ctx, principal.ProjectID, request.Flavor)
	if errdef.IsNotFound(err) {
		return model.Cluster{}, errdef.NewInvalidSpec("unknown flavor %q", request.Flavor)
	}
	if err != nil {
		return model.Cluster{}, err
	}

	network, err := s.resolver.FindNetwork(ctx, principal.ProjectID, request.Network)
	if errdef.IsNotFound(err) {
		return model.Cluster{}, errdef.NewInvalidSpec("unknown network %q", request.Network)
	}
	if err != nil {
		return model.Cluster{}, err
	}

	credential, err := s.sealer.Seal(request.Password)
	if err != nil {
		return model.Cluster{}, err
	}

	cluster := model.Cluster{
		ID:         uuid.New(),
		ProjectID:  principal.ProjectID,
		Name:       request.Name,
		FlavorID:   flavor.ID,
		NetworkID:  network.ID,
		Size:       request.Size,
		Username:   request.Username,
		Credential: credential,
	}
	if err := s.repository.Create(ctx, &cluster); err != nil {
		return model.Cluster{}, err
	}

	s.orchestrator.Provision(ctx, cluster)

	return cluster, nil
}

func (s Service) Find(ctx context.Context, principal model.Principal, id uuid.UUID) (model.Cluster, error) {
	return s.repository.Find(ctx, id, principal.ProjectID)
}

// Page is a slice of the clusters of a project. Next is the marker to pass to get the following
// page and is only set if there is one.
type Page struct {
	Clusters []model.Cluster `json:"clusters"`
	Next     *uuid.UUID      `json:"next,omitempty"`
}

// List returns a page of clusters. A limit of zero means the default page size. The limit is capped
// at MaxPageSize.
func (s Service) List(ctx context.Context, principal model.Principal, marker string, limit int) (Page, error) {
	if limit < 0 {
		return Page{}, errdef.NewInvalidSpec("limit must not be negative")
	}
	if limit == 0 {
		limit = s.pageSize
	}
	limit = min(limit, MaxPageSize)

	var after *uuid.UUID
	if marker != "" {
		id, err := uuid.Parse(marker)
		if err != nil {
			return Page{}, errdef.NewInvalidSpec("invalid marker %q: %v", marker, err)
		}
		after = &id
	}

	clusters, more, err := s.repository.List(ctx, principal.ProjectID, after, limit)
	if err != nil {
		return Page{}, err
	}

	page := Page{Clusters: clusters}
	if page.Clusters == nil {
		page.Clusters = []model.Cluster{}
	}
	if more {
		next := clusters[len(clusters)-1].ID
		page.Next = &next
	}

	return page, nil
}

// Delete starts the teardown of the cluster. A cluster which is already being deleted results in a
// Conflict and a deleted one in a NotFound error.
func (s Service) Delete(ctx context.Context, principal model.Principal, id uuid.UUID) error {
	cluster, err := s.repository.Find(ctx, id, principal.ProjectID)
	if err != nil {
		return err
	}

	switch cluster.State {
	case model.StateDeleted:
		return errdef.NewNotFound("cluster with id %q doesn't exist", id)
	case model.StateDeleting:
		return errdef.NewConflict("cluster %q is already being deleted", id)
	}

	return s.orchestrator.Teardown(ctx, cluster)
}
