package event_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dhis2-sre/mq-manager/pkg/event"
	"github.com/dhis2-sre/mq-manager/pkg/inttest"
	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher(t *testing.T) {
	t.Parallel()

	amqpClient := inttest.SetupRabbitMQAMQP(t)

	publisher, err := event.NewPublisher(amqpClient.Channel)
	require.NoError(t, err)

	queue, err := amqpClient.Channel.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	err = amqpClient.Channel.QueueBind(queue.Name, "cluster.error", event.Exchange, false, nil)
	require.NoError(t, err)
	deliveries, err := amqpClient.Channel.Consume(queue.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := model.Cluster{ID: uuid.New(), ProjectID: "project-1", Name: "orders", State: model.StateError, Error: "provisioning timed out"}
	require.NoError(t, publisher.Publish(ctx, model.Cluster{ID: uuid.New(), State: model.StateActive}))
	require.NoError(t, publisher.Publish(ctx, failed))

	select {
	case d := <-deliveries:
		assert.Equal(t, "cluster.error", d.RoutingKey)
		assert.Equal(t, "application/json", d.ContentType)
		var got event.Event
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, failed.ID, got.ClusterID)
		assert.Equal(t, "provisioning timed out", got.Error)
	case <-ctx.Done():
		assert.FailNow(t, "Timed out waiting on event.")
	}
}
