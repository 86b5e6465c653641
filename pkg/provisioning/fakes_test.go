package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// memoryStore keeps clusters in memory with the same version checks as the database repository.
type memoryStore struct {
	mu             sync.Mutex
	clusters       map[uuid.UUID]model.Cluster
	nodes          map[uuid.UUID]model.Node
	beforeActivate func(id uuid.UUID)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clusters: make(map[uuid.UUID]model.Cluster),
		nodes:    make(map[uuid.UUID]model.Node),
	}
}

func (s *memoryStore) add(cluster model.Cluster) model.Cluster {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cluster.ID == uuid.Nil {
		cluster.ID = uuid.New()
	}
	if cluster.Version == 0 {
		cluster.Version = 1
	}
	for _, node := range cluster.Nodes {
		node.ClusterID = cluster.ID
		s.nodes[node.ID] = node
	}
	cluster.Nodes = nil
	s.clusters[cluster.ID] = cluster
	return cluster
}

func (s *memoryStore) get(id uuid.UUID) model.Cluster {
	cluster, _ := s.FindByID(context.Background(), id)
	return cluster
}

func (s *memoryStore) FindByID(ctx context.Context, id uuid.UUID) (model.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cluster, ok := s.clusters[id]
	if !ok {
		return model.Cluster{}, errdef.NewNotFound("cluster with id %q doesn't exist", id)
	}
	cluster.Nodes = s.nodesOf(id)
	return cluster, nil
}

func (s *memoryStore) nodesOf(id uuid.UUID) []model.Node {
	var nodes []model.Node
	for _, node := range s.nodes {
		if node.ClusterID == id && node.State != model.NodeDeleted {
			nodes = append(nodes, node)
		}
	}
	slices.SortFunc(nodes, func(a, b model.Node) int { return strings.Compare(a.Name, b.Name) })
	return nodes
}

func (s *memoryStore) Transition(ctx context.Context, id uuid.UUID, version uint, from []model.State, to model.State, changes map[string]any) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.transition(id, version, from, to, changes)
}

func (s *memoryStore) transition(id uuid.UUID, version uint, from []model.State, to model.State, changes map[string]any) (uint, error) {
	cluster, ok := s.clusters[id]
	if !ok || cluster.Version != version || !slices.Contains(from, cluster.State) {
		return 0, errdef.NewConflict("cluster %q was modified concurrently, not moving it to %s", id, to)
	}

	cluster.State = to
	cluster.Version++
	if cause, ok := changes["error"].(string); ok {
		cluster.Error = cause
	}
	if started, ok := changes["provisioning_started_at"].(time.Time); ok {
		cluster.ProvisioningStartedAt = &started
	}
	s.clusters[id] = cluster
	return cluster.Version, nil
}

func (s *memoryStore) Activate(ctx context.Context, id uuid.UUID, version uint, nodes []model.Node) (uint, error) {
	if s.beforeActivate != nil {
		s.beforeActivate(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cluster := s.clusters[id]
	if len(nodes) != cluster.Size {
		return 0, fmt.Errorf("cluster %q has %d ready nodes but needs %d", id, len(nodes), cluster.Size)
	}

	newVersion, err := s.transition(id, version, []model.State{model.StateProvisioning}, model.StateActive, nil)
	if err != nil {
		return 0, err
	}
	for _, node := range nodes {
		stored := s.nodes[node.ID]
		stored.State = model.NodeReady
		stored.Endpoint = node.Endpoint
		s.nodes[node.ID] = stored
	}
	return newVersion, nil
}

func (s *memoryStore) SaveNode(ctx context.Context, node *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	s.nodes[node.ID] = *node
	return nil
}

func (s *memoryStore) DeleteNode(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.nodes[id]
	node.State = model.NodeDeleted
	s.nodes[id] = node
	return nil
}

func (s *memoryStore) FindStuck(ctx context.Context, startedBefore time.Time) ([]model.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clusters []model.Cluster
	for _, cluster := range s.clusters {
		if cluster.State == model.StateProvisioning && cluster.ProvisioningStartedAt != nil && cluster.ProvisioningStartedAt.Before(startedBefore) {
			cluster.Nodes = s.nodesOf(cluster.ID)
			clusters = append(clusters, cluster)
		}
	}
	return clusters, nil
}

func (s *memoryStore) FindByState(ctx context.Context, states ...model.State) ([]model.Cluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var clusters []model.Cluster
	for _, cluster := range s.clusters {
		if slices.Contains(states, cluster.State) {
			cluster.Nodes = s.nodesOf(cluster.ID)
			clusters = append(clusters, cluster)
		}
	}
	return clusters, nil
}

type fakeServer struct {
	name  string
	polls int
}

// fakeCompute boots servers which become ready after readyAfter status polls.
type fakeCompute struct {
	mu         sync.Mutex
	servers    map[string]*fakeServer
	next       int
	readyAfter int
	// failing names the node index suffix, like "-2", of a node which fails to boot
	failing string
	// createErr is returned for nodes whose name ends with failing
	createErr error
	// hang keeps every node building forever
	hang bool
	// release blocks CreateNode until it is closed
	release  chan struct{}
	creating chan struct{}
	deleted  []string
	// deleteFailures is the number of DeleteNode calls which fail before deletes succeed
	deleteFailures int
}

func newFakeCompute() *fakeCompute {
	return &fakeCompute{servers: make(map[string]*fakeServer), readyAfter: 2}
}

func (f *fakeCompute) CreateNode(ctx context.Context, request provider.NodeRequest) (string, error) {
	if f.creating != nil {
		select {
		case f.creating <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if f.createErr != nil && strings.HasSuffix(request.Name, f.failing) {
		return "", f.createErr
	}
	if request.Password == "" {
		return "", errors.New("missing password")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("server-%d", f.next)
	f.servers[id] = &fakeServer{name: request.Name}
	return id, nil
}

func (f *fakeCompute) NodeStatus(ctx context.Context, serverID, networkID string) (provider.NodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	server, ok := f.servers[serverID]
	if !ok {
		return provider.NodeStatus{}, provider.ErrNotFound
	}
	server.polls++

	switch {
	case f.hang:
		return provider.NodeStatus{State: provider.NodeBuilding}, nil
	case f.createErr == nil && f.failing != "" && strings.HasSuffix(server.name, f.failing):
		return provider.NodeStatus{State: provider.NodeFailed, Fault: "No valid host was found"}, nil
	case server.polls >= f.readyAfter:
		return provider.NodeStatus{State: provider.NodeReady, Address: "10.0.0." + strings.TrimPrefix(serverID, "server-")}, nil
	default:
		return provider.NodeStatus{State: provider.NodeBuilding}, nil
	}
}

func (f *fakeCompute) DeleteNode(ctx context.Context, serverID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteFailures > 0 {
		f.deleteFailures--
		return errors.New("compute service unavailable")
	}

	delete(f.servers, serverID)
	f.deleted = append(f.deleted, serverID)
	return nil
}

func (f *fakeCompute) serverCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.servers)
}

func nodeRequest(name string) provider.NodeRequest {
	return provider.NodeRequest{Name: name, Username: "admin", Password: "secret"}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Cluster
}

func (p *recordingPublisher) Publish(ctx context.Context, cluster model.Cluster) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, cluster)
	return nil
}

func (p *recordingPublisher) states(id uuid.UUID) []model.State {
	p.mu.Lock()
	defer p.mu.Unlock()

	var states []model.State
	for _, event := range p.events {
		if event.ID == id {
			states = append(states, event.State)
		}
	}
	return states
}
