package cluster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

//goland:noinspection GoExportedFuncWithUnexportedType
func NewRepository(db *gorm.DB) *repository {
	return &repository{db}
}

type repository struct {
	db *gorm.DB
}

func withNodes(db *gorm.DB) *gorm.DB {
	return db.Preload("Nodes", func(db *gorm.DB) *gorm.DB {
		return db.Where("state <> ?", model.NodeDeleted).Order("name")
	})
}

func (r repository) Create(ctx context.Context, cluster *model.Cluster) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	cluster.State = model.StateRequested
	cluster.Version = 1
	err := r.db.WithContext(ctx).Create(cluster).Error
	if err != nil {
		return fmt.Errorf("failed to create cluster: %v", err)
	}

	return nil
}

// Find returns the cluster with the given id if it belongs to the given project.
func (r repository) Find(ctx context.Context, id uuid.UUID, projectID string) (model.Cluster, error) {
	var cluster model.Cluster
	err := r.db.
		WithContext(ctx).
		Scopes(withNodes).
		Where("id = ? AND project_id = ?", id, projectID).
		First(&cluster).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cluster{}, errdef.NewNotFound("cluster with id %q doesn't exist", id)
	}

	if err != nil {
		return model.Cluster{}, fmt.Errorf("failed to find cluster: %v", err)
	}

	return cluster, nil
}

// FindByID returns the cluster regardless of its project. It is meant for background jobs which
// are not acting on behalf of a caller.
func (r repository) FindByID(ctx context.Context, id uuid.UUID) (model.Cluster, error) {
	var cluster model.Cluster
	err := r.db.
		WithContext(ctx).
		Scopes(withNodes).
		Where("id = ?", id).
		First(&cluster).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cluster{}, errdef.NewNotFound("cluster with id %q doesn't exist", id)
	}

	if err != nil {
		return model.Cluster{}, fmt.Errorf("failed to find cluster: %v", err)
	}

	return cluster, nil
}

// List returns at most limit clusters of the project ordered by creation time and id, starting
// after the cluster with id marker. The second return value reports whether more clusters follow.
// Deleted clusters are not listed.
func (r repository) List(ctx context.Context, projectID string, marker *uuid.UUID, limit int) ([]model.Cluster, bool, error) {
	query := r.db.
		WithContext(ctx).
		Scopes(withNodes).
		Where("project_id = ? AND state <> ?", projectID, model.StateDeleted)

	if marker != nil {
		var last model.Cluster
		err := r.db.
			WithContext(ctx).
			Select("id", "created_at").
			Where("id = ? AND project_id = ?", *marker, projectID).
			First(&last).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, errdef.NewInvalidSpec("unknown marker %q", *marker)
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to find marker: %v", err)
		}

		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)", last.CreatedAt, last.CreatedAt, last.ID)
	}

	var clusters []model.Cluster
	err := query.
		Order("created_at, id").
		Limit(limit + 1).
		Find(&clusters).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to list clusters: %v", err)
	}

	if len(clusters) > limit {
		return clusters[:limit], true, nil
	}

	return clusters, false, nil
}

// Transition moves the cluster to state to if it is still at the given version and in one of the
// states from. Additional column changes are applied in the same statement. The new version is
// returned. A Conflict error is returned if the cluster changed in the meantime.
func (r repository) Transition(ctx context.Context, id uuid.UUID, version uint, from []model.State, to model.State, changes map[string]any) (uint, error) {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	return transition(r.db.WithContext(ctx), id, version, from, to, changes)
}

func transition(db *gorm.DB, id uuid.UUID, version uint, from []model.State, to model.State, changes map[string]any) (uint, error) {
	values := map[string]any{
		"state":   to,
		"version": gorm.Expr("version + 1"),
	}
	for column, value := range changes {
		values[column] = value
	}

	result := db.
		Model(&model.Cluster{}).
		Where("id = ? AND version = ? AND state IN ?", id, version, from).
		Updates(values)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to move cluster %q to %s: %v", id, to, result.Error)
	}

	if result.RowsAffected == 0 {
		return 0, errdef.NewConflict("cluster %q was modified concurrently, not moving it to %s", id, to)
	}

	return version + 1, nil
}

// Activate moves the cluster from PROVISIONING to ACTIVE and records the endpoints of its nodes in
// one transaction. Every node of the cluster has to be ready.
func (r repository) Activate(ctx context.Context, id uuid.UUID, version uint, nodes []model.Node) (uint, error) {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	var newVersion uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		newVersion, err = transition(tx, id, version, []model.State{model.StateProvisioning}, model.StateActive, nil)
		if err != nil {
			return err
		}

		for _, node := range nodes {
			err := tx.
				Model(&model.Node{}).
				Where("id = ? AND cluster_id = ?", node.ID, id).
				Updates(map[string]any{"state": model.NodeReady, "endpoint": node.Endpoint}).Error
			if err != nil {
				return fmt.Errorf("failed to update node %q: %v", node.ID, err)
			}
		}

		var sizes []int
		err = tx.Model(&model.Cluster{}).Where("id = ?", id).Pluck("size", &sizes).Error
		if err != nil || len(sizes) != 1 {
			return fmt.Errorf("failed to read cluster size: %v", err)
		}
		size := sizes[0]

		var ready int64
		err = tx.Model(&model.Node{}).Where("cluster_id = ? AND state = ? AND endpoint <> ''", id, model.NodeReady).Count(&ready).Error
		if err != nil {
			return fmt.Errorf("failed to count ready nodes: %v", err)
		}

		if int(ready) != size {
			return fmt.Errorf("cluster %q has %d ready nodes but needs %d", id, ready, size)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return newVersion, nil
}

func (r repository) SaveNode(ctx context.Context, node *model.Node) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Save(node).Error
	if err != nil {
		return fmt.Errorf("failed to save node: %v", err)
	}

	return nil
}

// DeleteNode marks the node deleted. The record is kept.
func (r repository) DeleteNode(ctx context.Context, id uuid.UUID) error {
	// only use ctx for values (logging) and not cancellation signals on cud operations for now. ctx
	// cancellation can lead to rollbacks which we should decide individually.
	ctx = context.WithoutCancel(ctx)

	err := r.db.
		WithContext(ctx).
		Model(&model.Node{}).
		Where("id = ?", id).
		Update("state", model.NodeDeleted).Error
	if err != nil {
		return fmt.Errorf("failed to delete node: %v", err)
	}

	return nil
}

// FindStuck returns the clusters which started provisioning before the given time and are still
// provisioning.
func (r repository) FindStuck(ctx context.Context, startedBefore time.Time) ([]model.Cluster, error) {
	var clusters []model.Cluster
	err := r.db.
		WithContext(ctx).
		Scopes(withNodes).
		Where("state = ? AND provisioning_started_at < ?", model.StateProvisioning, startedBefore).
		Order("provisioning_started_at").
		Find(&clusters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck clusters: %v", err)
	}

	return clusters, nil
}

func (r repository) FindByState(ctx context.Context, states ...model.State) ([]model.Cluster, error) {
	var clusters []model.Cluster
	err := r.db.
		WithContext(ctx).
		Scopes(withNodes).
		Where("state IN ?", states).
		Order("created_at, id").
		Find(&clusters).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find clusters: %v", err)
	}

	return clusters, nil
}
