// Package cluster stores broker clusters and serves the cluster API.
//
// The repository is the only place cluster state changes are written. Every change is a
// conditional update on the version the caller read, so concurrent writers cannot overwrite each
// other.
package cluster

import "github.com/dhis2-sre/mq-manager/pkg/model"

// swagger:model
// A cluster. The admin password is never part of it.
type Cluster struct {
	// in: body
	Body model.Cluster
}

// swagger:model
// A page of clusters
type ClusterPage struct {
	// in: body
	Body Page
}

// swagger:parameters createCluster
type _ struct {
	// Cluster request. The password is stored sealed and never returned.
	// in: body
	// required: true
	Body CreateRequest
}

// swagger:parameters listClusters
type _ struct {
	// Id of the last cluster of the previous page
	// in: query
	Marker string `json:"marker"`

	// Maximum number of clusters to return, at most 100
	// in: query
	Limit int `json:"limit"`
}

// swagger:parameters findCluster deleteCluster
type _ struct {
	// in: path
	// required: true
	ID string `json:"id"`
}
