package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dhis2-sre/mq-manager/pkg/metrics"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	m.Transition(model.StateRequested, model.StateProvisioning)
	m.Transition(model.StateProvisioning, model.StateActive)
	m.Transition(model.StateProvisioning, model.StateActive)
	m.ProvisioningFinished(model.StateActive, time.Now().Add(-time.Minute))
	m.JobStarted()
	m.JobStarted()
	m.JobFinished()
	m.CatalogRequest("flavors", nil)
	m.CatalogRequest("flavors", errors.New("unavailable"))
	m.Swept()

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 5)

	for name, expected := range map[string]int{
		"mq_manager_cluster_transitions_total":    2,
		"mq_manager_catalog_requests_total":       2,
		"mq_manager_provisioning_duration_seconds": 1,
		"mq_manager_provisioning_jobs":            1,
		"mq_manager_swept_clusters_total":         1,
	} {
		count, err := testutil.GatherAndCount(reg, name)
		require.NoError(t, err)
		assert.Equal(t, expected, count, name)
	}
}
