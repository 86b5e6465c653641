package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	published  []published
	publishErr error
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func TestPublish(t *testing.T) {
	ch := &fakeChannel{}
	publisher, err := NewPublisher(ch)
	require.NoError(t, err)
	assert.Equal(t, []string{"cluster-events/topic"}, ch.declared)

	cluster := model.Cluster{
		ID:         uuid.New(),
		ProjectID:  "project-1",
		Name:       "orders",
		State:      model.StateActive,
		Credential: []byte("sealed"),
		Nodes: []model.Node{
			{State: model.NodeReady, Endpoint: "10.0.0.1:5672"},
		},
	}

	err = publisher.Publish(context.Background(), cluster)

	require.NoError(t, err)
	require.Len(t, ch.published, 1)
	assert.Equal(t, Exchange, ch.published[0].exchange)
	assert.Equal(t, "cluster.active", ch.published[0].key)
	assert.Equal(t, amqp.Persistent, ch.published[0].msg.DeliveryMode)
	assert.NotContains(t, string(ch.published[0].msg.Body), "sealed")

	var event Event
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &event))
	assert.Equal(t, cluster.ID, event.ClusterID)
	assert.Equal(t, model.StateActive, event.State)
	assert.Equal(t, []string{"10.0.0.1:5672"}, event.Endpoints)
}

func TestPublishFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	publisher, err := NewPublisher(ch)
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), model.Cluster{State: model.StateError})

	assert.ErrorContains(t, err, "channel closed")
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "cluster.requested", RoutingKey(model.StateRequested))
	assert.Equal(t, "cluster.deleting", RoutingKey(model.StateDeleting))
}
