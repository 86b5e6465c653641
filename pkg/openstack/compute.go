package openstack

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/attachinterfaces"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
)

const (
	statusActive = "ACTIVE"
	statusError  = "ERROR"
	portActive   = "ACTIVE"
)

func (c Client) CreateNode(ctx context.Context, request provider.NodeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	userData, err := newUserData(request)
	if err != nil {
		return "", err
	}

	opts := servers.CreateOpts{
		Name:      request.Name,
		ImageRef:  c.imageID,
		FlavorRef: request.FlavorID,
		Networks:  []servers.Network{{UUID: request.NetworkID}},
		Metadata: map[string]string{
			"mq-manager/cluster": request.ClusterID,
			"mq-manager/project": request.ProjectID,
		},
		UserData: userData,
	}

	server, err := servers.Create(c.compute, opts).Extract()
	if err != nil {
		return "", fmt.Errorf("failed to create server %q: %w", request.Name, classify(err))
	}

	return server.ID, nil
}

// NodeStatus reports a node as ready once the server is active and has an IPv4 address on an
// active port attached to the requested network.
func (c Client) NodeStatus(ctx context.Context, serverID, networkID string) (provider.NodeStatus, error) {
	if err := ctx.Err(); err != nil {
		return provider.NodeStatus{}, err
	}

	server, err := servers.Get(c.compute, serverID).Extract()
	if err != nil {
		return provider.NodeStatus{}, fmt.Errorf("failed to get server %q: %w", serverID, classify(err))
	}

	switch server.Status {
	case statusError:
		fault := server.Fault.Message
		if fault == "" {
			fault = "server entered ERROR state"
		}
		return provider.NodeStatus{State: provider.NodeFailed, Fault: fault}, nil
	case statusActive:
	default:
		return provider.NodeStatus{State: provider.NodeBuilding}, nil
	}

	pages, err := attachinterfaces.List(c.compute, serverID).AllPages()
	if err != nil {
		return provider.NodeStatus{}, fmt.Errorf("failed to list interfaces of server %q: %w", serverID, classify(err))
	}

	interfaces, err := attachinterfaces.ExtractInterfaces(pages)
	if err != nil {
		return provider.NodeStatus{}, fmt.Errorf("failed to extract interfaces of server %q: %v", serverID, err)
	}

	for _, iface := range interfaces {
		if iface.NetID != networkID || iface.PortState != portActive {
			continue
		}
		for _, ip := range iface.FixedIPs {
			if parsed := net.ParseIP(ip.IPAddress); parsed != nil && parsed.To4() != nil {
				return provider.NodeStatus{State: provider.NodeReady, Address: ip.IPAddress}, nil
			}
		}
	}

	return provider.NodeStatus{State: provider.NodeBuilding}, nil
}

func (c Client) DeleteNode(ctx context.Context, serverID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := classify(servers.Delete(c.compute, serverID).ExtractErr())
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return fmt.Errorf("failed to delete server %q: %w", serverID, err)
	}

	return nil
}
