// Package catalog resolves the flavors and networks a project may use.
package catalog

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dhis2-sre/mq-manager/internal/errdef"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/dhis2-sre/mq-manager/pkg/provider"
	"github.com/sony/gobreaker"
	"golang.org/x/exp/slices"
)

const (
	kindFlavors  = "flavors"
	kindNetworks = "networks"

	breakerConsecutiveFailures = 5
	breakerOpenTimeout         = 30 * time.Second
)

type catalogMetrics interface {
	CatalogRequest(kind string, err error)
}

type Resolver struct {
	logger     *slog.Logger
	provider   provider.CatalogProvider
	metrics    catalogMetrics
	breaker    *gobreaker.CircuitBreaker
	retries    uint64
	newBackOff func() backoff.BackOff
}

// NewResolver returns a resolver that retries transient provider failures at most retries times and
// stops calling the provider for a while after consecutive failures.
func NewResolver(logger *slog.Logger, catalogProvider provider.CatalogProvider, retries uint64, metrics catalogMetrics) *Resolver {
	settings := gobreaker.Settings{
		Name:    "catalog",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &Resolver{
		logger:     logger,
		provider:   catalogProvider,
		metrics:    metrics,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		retries:    retries,
		newBackOff: newExponentialBackOff,
	}
}

func newExponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

// ListFlavors returns the flavors sorted by RAM, then VCPUs, then ID.
func (r *Resolver) ListFlavors(ctx context.Context, projectID string) ([]model.Flavor, error) {
	return cached(ctx, projectID, kindFlavors, func() ([]model.Flavor, error) {
		flavors, err := call(ctx, r, kindFlavors, func() ([]model.Flavor, error) {
			return r.provider.ListFlavors(ctx, projectID)
		})
		if err != nil {
			return nil, err
		}

		slices.SortStableFunc(flavors, func(a, b model.Flavor) int {
			return cmp.Or(
				cmp.Compare(a.RAM, b.RAM),
				cmp.Compare(a.VCPUs, b.VCPUs),
				cmp.Compare(a.ID, b.ID),
			)
		})
		return flavors, nil
	})
}

// ListNetworks returns the networks sorted by name, then ID.
func (r *Resolver) ListNetworks(ctx context.Context, projectID string) ([]model.Network, error) {
	return cached(ctx, projectID, kindNetworks, func() ([]model.Network, error) {
		networks, err := call(ctx, r, kindNetworks, func() ([]model.Network, error) {
			return r.provider.ListNetworks(ctx, projectID)
		})
		if err != nil {
			return nil, err
		}

		slices.SortStableFunc(networks, func(a, b model.Network) int {
			return cmp.Or(
				cmp.Compare(a.Name, b.Name),
				cmp.Compare(a.ID, b.ID),
			)
		})
		return networks, nil
	})
}

func (r *Resolver) FindFlavor(ctx context.Context, projectID, id string) (model.Flavor, error) {
	flavors, err := r.ListFlavors(ctx, projectID)
	if err != nil {
		return model.Flavor{}, err
	}

	index := slices.IndexFunc(flavors, func(flavor model.Flavor) bool { return flavor.ID == id })
	if index == -1 {
		return model.Flavor{}, errdef.NewNotFound("flavor %q not found", id)
	}

	return flavors[index], nil
}

func (r *Resolver) FindNetwork(ctx context.Context, projectID, id string) (model.Network, error) {
	networks, err := r.ListNetworks(ctx, projectID)
	if err != nil {
		return model.Network{}, err
	}

	index := slices.IndexFunc(networks, func(network model.Network) bool { return network.ID == id })
	if index == -1 {
		return model.Network{}, errdef.NewNotFound("network %q not found", id)
	}

	return networks[index], nil
}

// call runs fn through the circuit breaker and retries it while it fails transiently. Every error
// returned is a CatalogUnavailable error.
func call[T any](ctx context.Context, r *Resolver, kind string, fn func() (T, error)) (T, error) {
	attempt := 0
	operation := func() (T, error) {
		attempt++
		var zero T
		result, err := r.breaker.Execute(func() (any, error) {
			return fn()
		})
		if err != nil {
			r.logger.WarnContext(ctx, "Catalog request failed", "kind", kind, "attempt", attempt, "error", err)
			if !errors.Is(err, provider.ErrTransient) {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return result.(T), nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.retries), ctx)
	result, err := backoff.RetryWithData(operation, b)
	r.metrics.CatalogRequest(kind, err)
	if err != nil {
		return result, errdef.NewCatalogUnavailable("failed to list %s: %v", kind, err)
	}

	return result, nil
}
