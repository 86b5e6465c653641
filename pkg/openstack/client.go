// Package openstack implements the catalog and compute provider contracts against nova and neutron.
package openstack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dhis2-sre/mq-manager/pkg/config"
	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"github.com/gophercloud/gophercloud"
	gcopenstack "github.com/gophercloud/gophercloud/openstack"
)

const requestTimeout = 30 * time.Second

type Client struct {
	compute *gophercloud.ServiceClient
	network *gophercloud.ServiceClient
	imageID string
}

// NewClient authenticates the service account and resolves the compute and network endpoints.
func NewClient(cfg config.OpenStack) (*Client, error) {
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: cfg.AuthURL,
		Username:         cfg.Username,
		Password:         cfg.Password,
		DomainName:       cfg.DomainName,
		TenantID:         cfg.ProjectID,
		AllowReauth:      true,
	}

	pClient, err := gcopenstack.NewClient(opts.IdentityEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider client: %v", err)
	}
	pClient.HTTPClient = http.Client{Timeout: requestTimeout}

	if err := gcopenstack.Authenticate(pClient, opts); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %v", err)
	}

	endpointOpts := gophercloud.EndpointOpts{Region: cfg.Region}

	compute, err := gcopenstack.NewComputeV2(pClient, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve compute endpoint: %v", err)
	}

	network, err := gcopenstack.NewNetworkV2(pClient, endpointOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve network endpoint: %v", err)
	}

	return newClient(compute, network, cfg.ImageID), nil
}

func newClient(compute, network *gophercloud.ServiceClient, imageID string) *Client {
	return &Client{
		compute: compute,
		network: network,
		imageID: imageID,
	}
}

// classify maps gophercloud and transport errors onto the provider sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var statusErr gophercloud.StatusCodeError
	if errors.As(err, &statusErr) {
		code := statusErr.GetStatusCode()
		switch {
		case code == http.StatusNotFound:
			return fmt.Errorf("%w: %w", provider.ErrNotFound, err)
		case code == http.StatusTooManyRequests, code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", provider.ErrTransient, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", provider.ErrTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrTransient, err)
	}

	return err
}
