package model

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of a cluster.
type State string

const (
	StateRequested    State = "REQUESTED"
	StateProvisioning State = "PROVISIONING"
	StateActive       State = "ACTIVE"
	StateError        State = "ERROR"
	StateDeleting     State = "DELETING"
	StateDeleted      State = "DELETED"
)

// Deletable lists the states from which a cluster may be deleted.
var Deletable = []State{StateRequested, StateProvisioning, StateActive, StateError}

// Terminal returns true if no further transition, other than deletion of an errored cluster, is possible.
func (s State) Terminal() bool {
	return s == StateError || s == StateDeleted
}

// swagger:model Cluster
type Cluster struct {
	// required: true
	ID uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	// required: true
	CreatedAt time.Time `json:"createdAt" gorm:"index:idx_clusters_project_order,priority:2"`
	// required: true
	UpdatedAt time.Time `json:"updatedAt"`
	// required: true
	ProjectID string `json:"projectId" gorm:"index:idx_clusters_project_order,priority:1;not null"`
	// required: true
	Name string `json:"name" gorm:"not null"`
	// required: true
	FlavorID string `json:"flavor" gorm:"not null"`
	// required: true
	NetworkID string `json:"network" gorm:"not null"`
	// required: true
	Size int `json:"size" gorm:"not null"`
	// required: true
	Username string `json:"username" gorm:"not null"`
	// Credential is the sealed broker admin password. It is write-only.
	Credential []byte `json:"-" gorm:"not null"`
	// required: true
	State State `json:"state" gorm:"index;not null"`
	// Cause of the failure when state is ERROR
	Error                 string     `json:"error,omitempty"`
	Version               uint       `json:"-" gorm:"not null;default:1"`
	ProvisioningStartedAt *time.Time `json:"provisioningStartedAt,omitempty"`
	Nodes                 []Node     `json:"nodes" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// Endpoints returns the endpoints of all ready nodes.
func (c Cluster) Endpoints() []string {
	endpoints := make([]string, 0, len(c.Nodes))
	for _, node := range c.Nodes {
		if node.State == NodeReady && node.Endpoint != "" {
			endpoints = append(endpoints, node.Endpoint)
		}
	}
	return endpoints
}

type NodeState string

const (
	NodeBuilding NodeState = "BUILDING"
	NodeReady    NodeState = "READY"
	NodeFailed   NodeState = "FAILED"
	NodeDeleted  NodeState = "DELETED"
)

// Node is a single broker server belonging to a cluster. It is recorded as soon as the compute
// provider accepts the boot request.
type Node struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	ClusterID uuid.UUID `json:"-" gorm:"type:uuid;index;not null"`
	Name      string    `json:"name"`
	ServerID  string    `json:"-" gorm:"not null"`
	State     NodeState `json:"state" gorm:"not null"`
	Endpoint  string    `json:"endpoint,omitempty"`
}
