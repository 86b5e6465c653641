// Package event publishes cluster lifecycle changes to RabbitMQ. Every state a cluster enters is
// published to a topic exchange with routing key "cluster.<state>", for example
// "cluster.active". Consumers bind with patterns like "cluster.*".
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dhis2-sre/mq-manager/pkg/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const Exchange = "cluster-events"

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NewPublisher declares the exchange and returns a publisher using the given channel.
func NewPublisher(ch channel) (*Publisher, error) {
	err := ch.ExchangeDeclare(Exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange %q: %v", Exchange, err)
	}

	return &Publisher{channel: ch}, nil
}

type Publisher struct {
	channel channel
}

// Event is the message body. It never carries the cluster credential.
type Event struct {
	ClusterID  uuid.UUID   `json:"clusterId"`
	ProjectID  string      `json:"projectId"`
	Name       string      `json:"name"`
	State      model.State `json:"state"`
	Error      string      `json:"error,omitempty"`
	Endpoints  []string    `json:"endpoints,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
}

func RoutingKey(state model.State) string {
	return "cluster." + strings.ToLower(string(state))
}

func (p *Publisher) Publish(ctx context.Context, cluster model.Cluster) error {
	now := time.Now().UTC()
	body, err := json.Marshal(Event{
		ClusterID:  cluster.ID,
		ProjectID:  cluster.ProjectID,
		Name:       cluster.Name,
		State:      cluster.State,
		Error:      cluster.Error,
		Endpoints:  cluster.Endpoints(),
		OccurredAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %v", err)
	}

	err = p.channel.PublishWithContext(ctx, Exchange, RoutingKey(cluster.State), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    now,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event for cluster %q: %v", cluster.State, cluster.ID, err)
	}

	return nil
}
