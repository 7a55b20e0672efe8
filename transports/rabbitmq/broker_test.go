package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeBroker is an in-memory Channel routing default-exchange publishes to
// queues by name
type fakeBroker struct {
	mu        sync.Mutex
	queues    map[string]chan amqp.Delivery
	consumers map[string]string // tag -> queue
	declared  []string
	tag       uint64
	publish   error

	acks, nacks, rejects int
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		queues:    make(map[string]chan amqp.Delivery),
		consumers: make(map[string]string),
	}
}

func (b *fakeBroker) queue(name string) chan amqp.Delivery {
	q, ok := b.queues[name]
	if !ok {
		q = make(chan amqp.Delivery, 64)
		b.queues[name] = q
	}
	return q
}

func (b *fakeBroker) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.publish != nil {
		return b.publish
	}
	if exchange != "" {
		return errors.New("unknown exchange " + exchange)
	}
	b.tag++
	b.queue(key) <- amqp.Delivery{
		Acknowledger:  b,
		DeliveryTag:   b.tag,
		ContentType:   msg.ContentType,
		CorrelationId: msg.CorrelationId,
		MessageId:     msg.MessageId,
		ReplyTo:       msg.ReplyTo,
		Type:          msg.Type,
		Body:          msg.Body,
	}
	return nil
}

func (b *fakeBroker) Consume(queue, consumer string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers[consumer] = queue
	return b.queue(queue), nil
}

func (b *fakeBroker) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.declared = append(b.declared, name)
	b.queue(name)
	return amqp.Queue{Name: name}, nil
}

func (b *fakeBroker) QueueDeclarePassive(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[name]
	if !ok {
		return amqp.Queue{}, &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue '" + name + "'"}
	}
	consumers := 0
	for _, queue := range b.consumers {
		if queue == name {
			consumers++
		}
	}
	return amqp.Queue{Name: name, Messages: len(q), Consumers: consumers}, nil
}

func (b *fakeBroker) Cancel(consumer string, _ bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.consumers, consumer)
	return nil
}

func (b *fakeBroker) Ack(uint64, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks++
	return nil
}

func (b *fakeBroker) Nack(uint64, bool, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nacks++
	return nil
}

func (b *fakeBroker) Reject(uint64, bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejects++
	return nil
}

func (b *fakeBroker) counts() (acks, nacks, rejects int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acks, b.nacks, b.rejects
}
