package queue

import (
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errDetached is returned when settling a delivery that has no channel
var errDetached = errors.New("delivery is not attached to a channel")

// Message is a decoded schedule job plus the delivery it arrived on
type Message struct {
	Job         *Job
	DeliveryTag uint64
	Channel     *amqp.Channel
}

var _ MessageInterface = (*Message)(nil)

// GetJob implements MessageInterface
func (m *Message) GetJob() *Job {
	return m.Job
}

// Ack settles the delivery as done
func (m *Message) Ack() error {
	if m.Channel == nil {
		return errDetached
	}
	if err := m.Channel.Ack(m.DeliveryTag, false); err != nil {
		return fmt.Errorf("ack delivery %d: %w", m.DeliveryTag, err)
	}
	return nil
}

// Nack rejects the delivery. Without requeue the broker routes it to the DLQ.
func (m *Message) Nack(requeue bool) error {
	if m.Channel == nil {
		return errDetached
	}
	if err := m.Channel.Nack(m.DeliveryTag, false, requeue); err != nil {
		return fmt.Errorf("nack delivery %d (requeue=%t): %w", m.DeliveryTag, requeue, err)
	}
	return nil
}
