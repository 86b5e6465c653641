package storage

import (
	"fmt"

	"github.com/dhis2-sre/mq-manager/pkg/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// NewAMQP connects to RabbitMQ and opens the channel lifecycle events are published on. Closing
// the returned connection also closes the channel.
func NewAMQP(c config.RabbitMQ) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(c.GetUrl())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %v", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("failed to open RabbitMQ channel: %v", err)
	}

	return conn, ch, nil
}
