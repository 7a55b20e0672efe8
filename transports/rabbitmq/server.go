package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lubkli/IoCBuilder-sub000/call"
	"github.com/lubkli/IoCBuilder-sub000/proxy"
)

// MethodSource describes the methods of a Remotable so that arguments can
// be decoded into their declared types. proxy.Endpoint implements it.
type MethodSource interface {
	Method(name string) (*call.Method, bool)
}

// Server consumes requests from a queue and dispatches them to a target
type Server struct {
	ch          Channel
	queue       string
	target      proxy.Remotable
	lookup      func(string) (*call.Method, bool)
	declare     bool
	callTimeout time.Duration
	tag         string
	logger      *slog.Logger
}

// ServerOption configures the server
type ServerOption func(*Server)

// WithQueueDeclare declares the request queue, durable, before consuming
func WithQueueDeclare() ServerOption {
	return func(s *Server) {
		s.declare = true
	}
}

// WithCallTimeout bounds the context passed to every call
func WithCallTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.callTimeout = timeout
	}
}

// WithServerLogger sets the logger
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server dispatching requests on queue to target.
// Without method descriptors from target, arguments arrive in their generic
// JSON form.
func NewServer(ch Channel, queue string, target proxy.Remotable, options ...ServerOption) *Server {
	s := &Server{
		ch:          ch,
		queue:       queue,
		target:      target,
		callTimeout: 30 * time.Second,
		tag:         "rpc-server-" + uuid.NewString(),
		logger:      slog.Default(),
	}
	if src, ok := target.(MethodSource); ok {
		s.lookup = src.Method
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Serve handles requests one at a time until ctx is done or the delivery
// channel closes
func (s *Server) Serve(ctx context.Context) error {
	if s.declare {
		if _, err := s.ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", s.queue, err)
		}
	}

	deliveries, err := s.ch.Consume(s.queue, s.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", s.queue, err)
	}

	s.logger.Info("serving calls", "queue", s.queue, "consumerTag", s.tag)

	for {
		select {
		case <-ctx.Done():
			if err := s.ch.Cancel(s.tag, false); err != nil {
				s.logger.Warn("failed to cancel consumer", "error", err)
			}
			return nil
		case d, ok := <-deliveries:
			if !ok {
				s.logger.Warn("delivery channel closed", "queue", s.queue)
				return nil
			}
			s.handle(ctx, d)
		}
	}
}

func (s *Server) handle(ctx context.Context, d amqp.Delivery) {
	if d.ReplyTo == "" {
		s.logger.Error("rejecting request", "error", ErrNoReplyTo, "messageId", d.MessageId)
		if err := d.Reject(false); err != nil {
			s.logger.Error("failed to reject message", "error", err)
		}
		return
	}

	body := s.process(ctx, d)

	err := s.ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   ContentType,
		CorrelationId: d.CorrelationId,
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		s.logger.Error("failed to publish reply",
			"error", err,
			"correlationId", d.CorrelationId,
		)
		if nackErr := d.Nack(false, true); nackErr != nil {
			s.logger.Error("failed to nack message", "error", nackErr, "originalError", err)
		}
		return
	}

	if err := d.Ack(false); err != nil {
		s.logger.Error("failed to ack message", "error", err)
	}
}

// process runs one request and returns the reply body
func (s *Server) process(ctx context.Context, d amqp.Delivery) []byte {
	m, name, args, err := DecodeRequest(d.Body, s.lookup)
	if err != nil {
		return s.failure(name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if m != nil {
		if i := m.ContextIndex(); i >= 0 {
			args[i] = callCtx
		}
	}

	results, err := s.dispatch(name, args)
	if err != nil {
		s.logger.Debug("call failed", "method", name, "correlationId", d.CorrelationId, "error", err)
	}

	body, encErr := EncodeReply(m, args, results, err)
	if encErr != nil {
		return s.failure(name, encErr)
	}
	return body
}

func (s *Server) dispatch(name string, args []any) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return s.target.Dispatch(name, args)
}

func (s *Server) failure(method string, err error) []byte {
	s.logger.Error("failed to process request", "method", method, "error", err)
	body, _ := EncodeReply(nil, nil, nil, err)
	return body
}
