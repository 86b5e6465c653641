package openstack

import (
	"context"
	"fmt"

	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/flavors"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/networks"
	"github.com/gophercloud/gophercloud/pagination"
)

// ListFlavors returns the public flavors. Flavors aren't owned by a project.
func (c Client) ListFlavors(ctx context.Context, _ string) ([]model.Flavor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []model.Flavor
	err := flavors.ListDetail(c.compute, flavors.ListOpts{AccessType: flavors.PublicAccess}).EachPage(func(page pagination.Page) (bool, error) {
		list, err := flavors.ExtractFlavors(page)
		if err != nil {
			return false, err
		}

		for _, flavor := range list {
			result = append(result, model.Flavor{
				ID:    flavor.ID,
				Name:  flavor.Name,
				RAM:   flavor.RAM,
				VCPUs: flavor.VCPUs,
				Disk:  flavor.Disk,
			})
		}
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list flavors: %w", classify(err))
	}

	return result, nil
}

// ListNetworks returns the networks owned by the project followed by the shared networks not
// already listed.
func (c Client) ListNetworks(ctx context.Context, projectID string) ([]model.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	owned, err := c.listNetworks(networks.ListOpts{TenantID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to list project networks: %w", classify(err))
	}

	shared := true
	public, err := c.listNetworks(networks.ListOpts{Shared: &shared})
	if err != nil {
		return nil, fmt.Errorf("failed to list shared networks: %w", classify(err))
	}

	seen := make(map[string]struct{}, len(owned))
	result := make([]model.Network, 0, len(owned)+len(public))
	for _, network := range append(owned, public...) {
		if _, ok := seen[network.ID]; ok {
			continue
		}
		seen[network.ID] = struct{}{}
		result = append(result, network)
	}

	return result, nil
}

func (c Client) listNetworks(opts networks.ListOpts) ([]model.Network, error) {
	var result []model.Network
	err := networks.List(c.network, opts).EachPage(func(page pagination.Page) (bool, error) {
		list, err := networks.ExtractNetworks(page)
		if err != nil {
			return false, err
		}

		for _, network := range list {
			name := network.Name
			if name == "" {
				name = network.ID
			}
			result = append(result, model.Network{
				ID:     network.ID,
				Name:   name,
				Shared: network.Shared,
			})
		}
		return true, nil
	})
	return result, err
}
