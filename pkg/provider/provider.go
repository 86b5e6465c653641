// Package provider defines what the service needs from a compute and network provider.
package provider

import (
	"context"
	"errors"

	"github.com/dhis2-sre/mq-manager/pkg/model"
)

var (
	// ErrTransient marks failures worth retrying: 5xx and 429 responses, timeouts and connection errors.
	ErrTransient = errors.New("transient provider failure")
	// ErrNotFound is returned when the provider doesn't know the referenced resource.
	ErrNotFound = errors.New("provider resource not found")
)

type CatalogProvider interface {
	ListFlavors(ctx context.Context, projectID string) ([]model.Flavor, error)
	ListNetworks(ctx context.Context, projectID string) ([]model.Network, error)
}

type NodeRequest struct {
	Name string
	// ClusterID is shared by all nodes of a cluster so they can join each other
	ClusterID string
	ProjectID string
	FlavorID  string
	NetworkID string
	Username  string
	Password  string
}

type NodeState int

const (
	NodeBuilding NodeState = iota
	NodeReady
	NodeFailed
)

type NodeStatus struct {
	State NodeState
	// Address on the requested network, set once the node is ready
	Address string
	// Fault reported by the provider when the node failed
	Fault string
}

type ComputeProvider interface {
	// CreateNode asks the provider to boot a node and returns the provider's server reference.
	CreateNode(ctx context.Context, request NodeRequest) (string, error)
	NodeStatus(ctx context.Context, serverID, networkID string) (NodeStatus, error)
	// DeleteNode removes the server. A server the provider no longer knows counts as deleted.
	DeleteNode(ctx context.Context, serverID string) error
}
