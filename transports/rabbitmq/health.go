package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Status is the outcome of a health check
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult is the report of one checker
type CheckResult struct {
	Name      string         `json:"name"`
	Status    Status         `json:"status"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// Checker checks one part of the transport
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// CheckAll runs checkers in order and returns the worst status with every
// result.
func CheckAll(ctx context.Context, checkers ...Checker) (Status, []CheckResult) {
	status := StatusHealthy
	results := make([]CheckResult, 0, len(checkers))
	for _, c := range checkers {
		r := c.Check(ctx)
		if r.Status.rank() > status.rank() {
			status = r.Status
		}
		results = append(results, r)
	}
	return status, results
}

func newResult(name string) CheckResult {
	return CheckResult{Name: name, Timestamp: time.Now(), Details: make(map[string]any)}
}

func (r CheckResult) finish(status Status, message string, err error) CheckResult {
	r.Status = status
	r.Message = message
	if err != nil {
		r.Error = err.Error()
	}
	r.Duration = time.Since(r.Timestamp)
	r.Details["response_time_ms"] = r.Duration.Milliseconds()
	return r
}

// ConnectionChecker checks that a ConnectionManager holds an open
// connection that can still open channels.
type ConnectionChecker struct {
	manager *ConnectionManager
}

// NewConnectionChecker creates a connection health checker
func NewConnectionChecker(manager *ConnectionManager) *ConnectionChecker {
	return &ConnectionChecker{manager: manager}
}

func (c *ConnectionChecker) Name() string { return "rabbitmq" }

func (c *ConnectionChecker) Check(ctx context.Context) CheckResult {
	result := newResult(c.Name())

	ch, err := c.manager.Channel()
	if err != nil {
		return result.finish(StatusUnhealthy, "Failed to open channel", err)
	}
	defer ch.Close()

	result.Details["connection_open"] = c.manager.IsConnected()
	return result.finish(StatusHealthy, "Connection is healthy", nil)
}

// QueueInspector reads queue statistics without declaring the queue.
// *amqp.Channel implements it.
type QueueInspector interface {
	QueueDeclarePassive(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

var _ QueueInspector = (*amqp.Channel)(nil)

// QueueChecker checks the request queue of a Server: it must exist, have a
// consumer and a backlog below the threshold.
type QueueChecker struct {
	queue     string
	inspector QueueInspector
	backlog   int
}

// NewQueueChecker creates a queue health checker. A backlog of 0 or less
// disables the backlog check.
func NewQueueChecker(queue string, inspector QueueInspector, backlog int) *QueueChecker {
	return &QueueChecker{queue: queue, inspector: inspector, backlog: backlog}
}

func (c *QueueChecker) Name() string { return fmt.Sprintf("queue_%s", c.queue) }

func (c *QueueChecker) Check(ctx context.Context) CheckResult {
	result := newResult(c.Name())

	q, err := c.inspector.QueueDeclarePassive(c.queue, true, false, false, false, nil)
	if err != nil {
		return result.finish(StatusUnhealthy, fmt.Sprintf("Queue %s not accessible", c.queue), err)
	}

	result.Details["queue_name"] = q.Name
	result.Details["message_count"] = q.Messages
	result.Details["consumer_count"] = q.Consumers

	switch {
	case q.Consumers == 0:
		return result.finish(StatusDegraded, fmt.Sprintf("Queue %s has no consumers", c.queue), nil)
	case c.backlog > 0 && q.Messages > c.backlog:
		return result.finish(StatusDegraded, fmt.Sprintf("Queue %s has high message count", c.queue), nil)
	default:
		return result.finish(StatusHealthy, fmt.Sprintf("Queue %s is accessible", c.queue), nil)
	}
}
