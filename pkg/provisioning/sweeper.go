package provisioning

import (
	"context"
	"time"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
)

// Sweep fails every cluster which has been provisioning for longer than the provisioning timeout
// and removes its nodes. Nodes of failed clusters which could not be deleted earlier are deleted
// again. It also restarts the teardown of clusters left DELETING, for example because the provider
// was unavailable.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	stuck, err := o.store.FindStuck(ctx, time.Now().Add(-o.timeout))
	if err != nil {
		return err
	}

	for _, cluster := range stuck {
		_, err := o.transition(ctx, cluster, []model.State{model.StateProvisioning}, model.StateError, map[string]any{"error": timedOut})
		if errdef.IsConflict(err) {
			o.logger.DebugContext(ctx, "Stuck cluster changed before it was swept", "clusterId", cluster.ID)
			continue
		}
		if err != nil {
			o.logger.ErrorContext(ctx, "Failed to sweep cluster", "clusterId", cluster.ID, "error", err)
			continue
		}

		o.metrics.Swept()
		if cluster.ProvisioningStartedAt != nil {
			o.metrics.ProvisioningFinished(model.StateError, *cluster.ProvisioningStartedAt)
		}

		o.cancelJob(cluster.ID)

		failed, err := o.store.FindByID(ctx, cluster.ID)
		if err != nil {
			o.logger.ErrorContext(ctx, "Failed to read swept cluster", "clusterId", cluster.ID, "error", err)
			continue
		}
		if err := o.deleteNodes(ctx, failed); err != nil {
			o.logger.ErrorContext(ctx, "Failed to delete nodes of swept cluster", "clusterId", cluster.ID, "error", err)
		}
	}

	failed, err := o.store.FindByState(ctx, model.StateError)
	if err != nil {
		return err
	}

	for _, cluster := range failed {
		if len(cluster.Nodes) == 0 {
			continue
		}
		o.logger.InfoContext(ctx, "Deleting remaining nodes of failed cluster", "clusterId", cluster.ID, "nodes", len(cluster.Nodes))
		if err := o.deleteNodes(ctx, cluster); err != nil {
			o.logger.ErrorContext(ctx, "Failed to delete nodes of failed cluster", "clusterId", cluster.ID, "error", err)
		}
	}

	deleting, err := o.store.FindByState(ctx, model.StateDeleting)
	if err != nil {
		return err
	}

	for _, cluster := range deleting {
		o.teardown(context.WithoutCancel(ctx), cluster.ID)
	}

	return nil
}

type locker interface {
	Acquire() (bool, error)
}

// RunSweeper sweeps every interval until ctx is done. A sweep only runs if the lease could be
// acquired so replicas don't sweep at the same time.
func (o *Orchestrator) RunSweeper(ctx context.Context, lease locker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		acquired, err := lease.Acquire()
		if err != nil {
			o.logger.ErrorContext(ctx, "Failed to acquire sweep lease", "error", err)
			continue
		}
		if !acquired {
			continue
		}

		if err := o.Sweep(ctx); err != nil {
			o.logger.ErrorContext(ctx, "Sweep failed", "error", err)
		}
	}
}
