package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/dispatch"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

// DirectReplyTo is the pseudo-queue RabbitMQ routes replies through without
// declaring a reply queue
const DirectReplyTo = "amq.rabbitmq.reply-to"

// Channel is the part of *amqp.Channel the transport uses
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Cancel(consumer string, noWait bool) error
}

var _ Channel = (*amqp.Channel)(nil)

// Client is a proxy.Remotable that forwards calls to a Server
type Client struct {
	ch         Channel
	queue      string
	exchange   string
	contract   reflect.Type
	methods    map[string]*call.Method
	timeout    time.Duration
	logger     *slog.Logger
	tag        string
	pending    sync.Map // correlation id -> chan amqp.Delivery
	done       chan struct{}
	closeOnce  sync.Once
	routerDone chan struct{}
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithTimeout bounds calls whose context has no earlier deadline
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithExchange publishes requests to exchange instead of the default one
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		c.exchange = exchange
	}
}

// WithClientLogger sets the logger
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client calling the methods of contract on the server
// consuming queue, and starts consuming replies from ch
func NewClient(ch Channel, queue string, contract reflect.Type, options ...ClientOption) (*Client, error) {
	if err := proxy.CheckInterface(contract); err != nil {
		return nil, err
	}

	c := &Client{
		ch:         ch,
		queue:      queue,
		contract:   contract,
		methods:    make(map[string]*call.Method, contract.NumMethod()),
		timeout:    30 * time.Second,
		logger:     slog.Default(),
		tag:        "rpc-client-" + uuid.NewString(),
		done:       make(chan struct{}),
		routerDone: make(chan struct{}),
	}
	for _, opt := range options {
		opt(c)
	}
	for i := 0; i < contract.NumMethod(); i++ {
		rm := contract.Method(i)
		c.methods[rm.Name] = call.MethodOf(contract, rm)
	}

	replies, err := ch.Consume(DirectReplyTo, c.tag, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume replies: %w", err)
	}
	go c.route(replies)

	return c, nil
}

// Connect creates a client for T and wraps it in a transparent proxy
// running rt. A nil generator means proxy.Default().
func Connect[T any](g *proxy.Generator, rt *dispatch.Runtime, ch Channel, queue string, options ...ClientOption) (T, *Client, error) {
	var zero T
	contract := reflect.TypeOf((*T)(nil)).Elem()

	c, err := NewClient(ch, queue, contract, options...)
	if err != nil {
		return zero, nil, err
	}
	p, err := proxy.Transparent[T](g, rt, c)
	if err != nil {
		c.Close()
		return zero, nil, err
	}
	return p, c, nil
}

// Contract returns the interface the client calls
func (c *Client) Contract() reflect.Type {
	return c.contract
}

// Dispatch implements proxy.Remotable
func (c *Client) Dispatch(method string, args []any) ([]any, error) {
	m, ok := c.methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", proxy.ErrUnknownMethod, method, c.contract)
	}

	select {
	case <-c.done:
		return nil, ErrClientClosed
	default:
	}

	ctx := context.Background()
	if i := m.ContextIndex(); i >= 0 && i < len(args) {
		if argCtx, ok := args[i].(context.Context); ok && argCtx != nil {
			ctx = argCtx
		}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id := uuid.NewString()
	body, err := EncodeRequest(m, args)
	if err != nil {
		return nil, &CallError{Method: m.Name, CorrelationID: id, Op: "encode", Err: err}
	}

	replyCh := make(chan amqp.Delivery, 1)
	c.pending.Store(id, replyCh)
	defer c.pending.Delete(id)

	err = c.ch.PublishWithContext(ctx, c.exchange, c.queue, false, false, amqp.Publishing{
		ContentType:   ContentType,
		CorrelationId: id,
		MessageId:     id,
		ReplyTo:       DirectReplyTo,
		Type:          m.Name,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		return nil, &CallError{Method: m.Name, CorrelationID: id, Op: "publish", Err: err}
	}

	c.logger.Debug("request published",
		"method", m.Name,
		"queue", c.queue,
		"correlationId", id,
	)

	select {
	case d := <-replyCh:
		results, err := DecodeReply(d.Body, m, args)
		var remote *RemoteError
		if err != nil && !errors.As(err, &remote) {
			return nil, &CallError{Method: m.Name, CorrelationID: id, Op: "decode", Err: err}
		}
		return results, err
	case <-ctx.Done():
		return nil, &CallError{Method: m.Name, CorrelationID: id, Op: "await", Err: ctx.Err()}
	case <-c.done:
		return nil, &CallError{Method: m.Name, CorrelationID: id, Op: "await", Err: ErrClientClosed}
	}
}

// route hands every reply to the call waiting for its correlation id
func (c *Client) route(replies <-chan amqp.Delivery) {
	defer close(c.routerDone)
	for {
		select {
		case <-c.done:
			return
		case d, ok := <-replies:
			if !ok {
				c.logger.Warn("reply channel closed", "queue", c.queue)
				return
			}
			waiter, ok := c.pending.Load(d.CorrelationId)
			if !ok {
				c.logger.Warn("dropping unexpected reply", "correlationId", d.CorrelationId)
				continue
			}
			select {
			case waiter.(chan amqp.Delivery) <- d:
			default:
			}
		}
	}
}

// Close stops consuming replies and fails calls still waiting for one.
// The channel stays open.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ch.Cancel(c.tag, false)
		<-c.routerDone
	})
	return err
}
