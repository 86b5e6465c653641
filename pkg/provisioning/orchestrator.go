// Package provisioning drives clusters through their lifecycle against the compute provider.
//
// A cluster is provisioned by a background job which boots all its nodes in parallel and waits for
// each of them to report an address on the requested network. The job either activates the cluster
// with all endpoints or removes every node it created and records the cause. Deleting a cluster
// cancels its provisioning job before the nodes are removed.
//
// Every state change is a conditional update on the version the orchestrator read. A change that
// loses against a concurrent one is dropped and the winner is left to finish its work.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"
)

const (
	brokerPort = "5672"

	timedOut = "provisioning timed out"
)

type store interface {
	FindByID(ctx context.Context, id uuid.UUID) (model.Cluster, error)
	Transition(ctx context.Context, id uuid.UUID, version uint, from []model.State, to model.State, changes map[string]any) (uint, error)
	Activate(ctx context.Context, id uuid.UUID, version uint, nodes []model.Node) (uint, error)
	SaveNode(ctx context.Context, node *model.Node) error
	DeleteNode(ctx context.Context, id uuid.UUID) error
	FindStuck(ctx context.Context, startedBefore time.Time) ([]model.Cluster, error)
	FindByState(ctx context.Context, states ...model.State) ([]model.Cluster, error)
}

type credentialOpener interface {
	Open(sealed []byte) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, cluster model.Cluster) error
}

type recorder interface {
	Transition(from, to model.State)
	ProvisioningFinished(result model.State, started time.Time)
	JobStarted()
	JobFinished()
	Swept()
}

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

type Orchestrator struct {
	logger       *slog.Logger
	store        store
	compute      provider.ComputeProvider
	opener       credentialOpener
	publisher    publisher
	metrics      recorder
	timeout      time.Duration
	pollInterval time.Duration

	mu        sync.Mutex
	jobs      map[uuid.UUID]*job
	teardowns map[uuid.UUID]struct{}
	wg        sync.WaitGroup
}

// NewOrchestrator returns an orchestrator giving every provisioning job the given timeout and
// polling node status at pollInterval.
func NewOrchestrator(logger *slog.Logger, store store, compute provider.ComputeProvider, opener credentialOpener, publisher publisher, metrics recorder, timeout, pollInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		logger:       logger,
		store:        store,
		compute:      compute,
		opener:       opener,
		publisher:    publisher,
		metrics:      metrics,
		timeout:      timeout,
		pollInterval: pollInterval,
		jobs:         make(map[uuid.UUID]*job),
		teardowns:    make(map[uuid.UUID]struct{}),
	}
}

// Provision starts provisioning the requested cluster in the background. Values of ctx like the
// correlation id are kept but its cancellation is not.
func (o *Orchestrator) Provision(ctx context.Context, cluster model.Cluster) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.timeout)

	o.mu.Lock()
	if _, ok := o.jobs[cluster.ID]; ok {
		o.mu.Unlock()
		cancel()
		o.logger.WarnContext(ctx, "Cluster is already being provisioned", "clusterId", cluster.ID)
		return
	}
	j := &job{cancel: cancel, done: make(chan struct{})}
	o.jobs[cluster.ID] = j
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.JobStarted()
	go func() {
		defer func() {
			cancel()
			o.mu.Lock()
			delete(o.jobs, cluster.ID)
			o.mu.Unlock()
			close(j.done)
			o.metrics.JobFinished()
			o.wg.Done()
		}()

		o.provision(ctx, cluster)
	}()
}

// cancelJob cancels the provisioning job of the cluster, if there is one, and waits for it to
// return.
func (o *Orchestrator) cancelJob(id uuid.UUID) {
	o.mu.Lock()
	j, ok := o.jobs[id]
	o.mu.Unlock()
	if !ok {
		return
	}

	j.cancel()
	<-j.done
}

func (o *Orchestrator) provision(ctx context.Context, cluster model.Cluster) {
	// writes and cleanup must still happen once the job is cancelled or timed out
	cleanupCtx := context.WithoutCancel(ctx)

	started := time.Now()
	cluster, err := o.transition(ctx, cluster, []model.State{model.StateRequested}, model.StateProvisioning, map[string]any{"provisioning_started_at": started})
	if err != nil {
		o.logger.WarnContext(ctx, "Not provisioning cluster", "clusterId", cluster.ID, "error", err)
		return
	}

	password, err := o.opener.Open(cluster.Credential)
	if err != nil {
		o.fail(cleanupCtx, cluster, started, fmt.Sprintf("failed to open credential: %v", err))
		return
	}

	nodes, err := o.bootNodes(ctx, cluster, password)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			o.fail(cleanupCtx, cluster, started, timedOut)
		case errors.Is(ctx.Err(), context.Canceled):
			o.logger.InfoContext(ctx, "Provisioning cancelled", "clusterId", cluster.ID)
		default:
			o.fail(cleanupCtx, cluster, started, err.Error())
		}
		return
	}

	version, err := o.store.Activate(cleanupCtx, cluster.ID, cluster.Version, nodes)
	if err == nil {
		previous := cluster.State
		cluster.Version, cluster.State, cluster.Nodes = version, model.StateActive, nodes
		o.changed(cleanupCtx, cluster, previous)
		o.metrics.ProvisioningFinished(model.StateActive, started)
		return
	}

	if !errdef.IsConflict(err) {
		o.fail(cleanupCtx, cluster, started, fmt.Sprintf("failed to activate cluster: %v", err))
		return
	}

	current, err := o.store.FindByID(cleanupCtx, cluster.ID)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to read cluster after losing activation", "clusterId", cluster.ID, "error", err)
		return
	}

	// a teardown which read the nodes before they were saved has not deleted them
	switch current.State {
	case model.StateError, model.StateDeleted:
		o.logger.InfoContext(ctx, "Cluster changed while provisioning, deleting its nodes", "clusterId", cluster.ID, "state", current.State, "cause", current.Error)
		if err := o.deleteNodes(cleanupCtx, current); err != nil {
			o.logger.ErrorContext(ctx, "Failed to delete nodes", "clusterId", cluster.ID, "error", err)
		}
	case model.StateDeleting:
		o.logger.InfoContext(ctx, "Cluster is being deleted while provisioning, tearing it down", "clusterId", cluster.ID)
		o.teardown(cleanupCtx, cluster.ID)
	default:
		o.logger.InfoContext(ctx, "Cluster changed while provisioning, leaving it", "clusterId", cluster.ID, "state", current.State)
	}
}

// bootNodes boots all nodes of the cluster in parallel and waits for them to become ready. The
// first failure cancels the remaining boots.
func (o *Orchestrator) bootNodes(ctx context.Context, cluster model.Cluster, password string) ([]model.Node, error) {
	g, ctx := errgroup.WithContext(ctx)
	nodes := make([]model.Node, cluster.Size)
	for i := range cluster.Size {
		g.Go(func() error {
			node, err := o.bootNode(ctx, cluster, i, password)
			nodes[i] = node
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return nodes, nil
}

func nodeName(cluster model.Cluster, index int) string {
	return slug.Make(fmt.Sprintf("%s-%s-%d", cluster.Name, cluster.ID.String()[:8], index+1))
}

func (o *Orchestrator) bootNode(ctx context.Context, cluster model.Cluster, index int, password string) (model.Node, error) {
	name := nodeName(cluster, index)
	serverID, err := o.compute.CreateNode(ctx, provider.NodeRequest{
		Name:      name,
		ClusterID: cluster.ID.String(),
		ProjectID: cluster.ProjectID,
		FlavorID:  cluster.FlavorID,
		NetworkID: cluster.NetworkID,
		Username:  cluster.Username,
		Password:  password,
	})
	if err != nil {
		return model.Node{}, fmt.Errorf("failed to create node %q: %w", name, err)
	}

	node := model.Node{
		ClusterID: cluster.ID,
		Name:      name,
		ServerID:  serverID,
		State:     model.NodeBuilding,
	}
	if err := o.store.SaveNode(ctx, &node); err != nil {
		// an unrecorded server would never be cleaned up
		if err := o.compute.DeleteNode(context.WithoutCancel(ctx), serverID); err != nil {
			o.logger.ErrorContext(ctx, "Failed to delete unrecorded node", "clusterId", cluster.ID, "serverId", serverID, "error", err)
		}
		return model.Node{}, err
	}
	o.logger.InfoContext(ctx, "Node created", "clusterId", cluster.ID, "node", name, "serverId", serverID)

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	for {
		status, err := o.compute.NodeStatus(ctx, serverID, cluster.NetworkID)
		if err != nil && !errors.Is(err, provider.ErrTransient) {
			return node, fmt.Errorf("failed to get status of node %q: %w", name, err)
		}
		if err != nil {
			o.logger.WarnContext(ctx, "Failed to get node status, retrying", "clusterId", cluster.ID, "node", name, "error", err)
		}

		if err == nil {
			switch status.State {
			case provider.NodeReady:
				node.State = model.NodeReady
				node.Endpoint = net.JoinHostPort(status.Address, brokerPort)
				o.logger.InfoContext(ctx, "Node ready", "clusterId", cluster.ID, "node", name, "endpoint", node.Endpoint)
				return node, nil
			case provider.NodeFailed:
				node.State = model.NodeFailed
				return node, fmt.Errorf("node %q failed: %s", name, status.Fault)
			}
		}

		select {
		case <-ctx.Done():
			return node, ctx.Err()
		case <-ticker.C:
		}
	}
}

// fail removes the nodes of a provisioning cluster and moves it to ERROR with the given cause.
func (o *Orchestrator) fail(ctx context.Context, cluster model.Cluster, started time.Time, cause string) {
	o.logger.ErrorContext(ctx, "Provisioning failed", "clusterId", cluster.ID, "cause", cause)

	current, err := o.store.FindByID(ctx, cluster.ID)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to read cluster", "clusterId", cluster.ID, "error", err)
		return
	}

	if err := o.deleteNodes(ctx, current); err != nil {
		o.logger.ErrorContext(ctx, "Failed to delete nodes", "clusterId", cluster.ID, "error", err)
	}

	_, err = o.transition(ctx, cluster, []model.State{model.StateProvisioning}, model.StateError, map[string]any{"error": cause})
	if err != nil {
		o.logger.WarnContext(ctx, "Not moving cluster to ERROR", "clusterId", cluster.ID, "error", err)
		return
	}
	o.metrics.ProvisioningFinished(model.StateError, started)
}

// deleteNodes deletes every recorded node of the cluster. Nodes the provider no longer knows
// count as deleted.
func (o *Orchestrator) deleteNodes(ctx context.Context, cluster model.Cluster) error {
	var errs []error
	for _, node := range cluster.Nodes {
		if err := o.compute.DeleteNode(ctx, node.ServerID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete node %q: %w", node.Name, err))
			continue
		}

		if err := o.store.DeleteNode(ctx, node.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		o.logger.InfoContext(ctx, "Node deleted", "clusterId", cluster.ID, "node", node.Name)
	}
	return errors.Join(errs...)
}

// Teardown moves the cluster to DELETING and removes it in the background. A cluster which changed
// since it was read results in a Conflict error.
func (o *Orchestrator) Teardown(ctx context.Context, cluster model.Cluster) error {
	_, err := o.transition(ctx, cluster, model.Deletable, model.StateDeleting, nil)
	if err != nil {
		return err
	}

	o.teardown(context.WithoutCancel(ctx), cluster.ID)
	return nil
}

// teardown starts removing a DELETING cluster unless that is already in progress.
func (o *Orchestrator) teardown(ctx context.Context, id uuid.UUID) {
	o.mu.Lock()
	if _, ok := o.teardowns[id]; ok {
		o.mu.Unlock()
		return
	}
	o.teardowns[id] = struct{}{}
	o.wg.Add(1)
	o.mu.Unlock()

	o.metrics.JobStarted()
	go func() {
		defer func() {
			o.mu.Lock()
			delete(o.teardowns, id)
			o.mu.Unlock()
			o.metrics.JobFinished()
			o.wg.Done()
		}()

		o.cancelJob(id)

		cluster, err := o.store.FindByID(ctx, id)
		if err != nil {
			o.logger.ErrorContext(ctx, "Failed to read cluster", "clusterId", id, "error", err)
			return
		}
		if cluster.State != model.StateDeleting {
			o.logger.WarnContext(ctx, "Not tearing down cluster", "clusterId", id, "state", cluster.State)
			return
		}

		if err := o.deleteNodes(ctx, cluster); err != nil {
			o.logger.ErrorContext(ctx, "Failed to delete nodes, cluster stays DELETING", "clusterId", id, "error", err)
			return
		}

		_, err = o.transition(ctx, cluster, []model.State{model.StateDeleting}, model.StateDeleted, nil)
		if err != nil {
			o.logger.WarnContext(ctx, "Not moving cluster to DELETED", "clusterId", id, "error", err)
		}
	}()
}

// transition applies a version checked state change and announces it.
func (o *Orchestrator) transition(ctx context.Context, cluster model.Cluster, from []model.State, to model.State, changes map[string]any) (model.Cluster, error) {
	version, err := o.store.Transition(ctx, cluster.ID, cluster.Version, from, to, changes)
	if err != nil {
		return cluster, err
	}

	previous := cluster.State
	cluster.Version = version
	cluster.State = to
	if cause, ok := changes["error"].(string); ok {
		cluster.Error = cause
	}
	o.changed(ctx, cluster, previous)

	return cluster, nil
}

func (o *Orchestrator) changed(ctx context.Context, cluster model.Cluster, previous model.State) {
	o.logger.InfoContext(ctx, "Cluster changed state", "clusterId", cluster.ID, "from", previous, "to", cluster.State)
	o.metrics.Transition(previous, cluster.State)

	if err := o.publisher.Publish(ctx, cluster); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish cluster event", "clusterId", cluster.ID, "error", err)
	}
}

// Resume continues the work interrupted by a restart. Requested clusters are provisioned and
// deleting clusters are torn down. Clusters left provisioning are failed by the sweep once they
// exceed the provisioning timeout.
func (o *Orchestrator) Resume(ctx context.Context) error {
	clusters, err := o.store.FindByState(ctx, model.StateRequested, model.StateDeleting)
	if err != nil {
		return err
	}

	for _, cluster := range clusters {
		switch cluster.State {
		case model.StateRequested:
			o.Provision(ctx, cluster)
		case model.StateDeleting:
			o.teardown(context.WithoutCancel(ctx), cluster.ID)
		}
	}

	o.logger.InfoContext(ctx, "Resumed clusters", "count", len(clusters))
	return nil
}

// Shutdown waits for all jobs to return. Jobs still running once ctx is done are cancelled.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}

	o.mu.Lock()
	for _, j := range o.jobs {
		j.cancel()
	}
	o.mu.Unlock()
	<-done

	return ctx.Err()
}
