package rabbitmq

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	status Status
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(context.Context) CheckResult {
	return newResult(c.name).finish(c.status, "static", nil)
}

func TestConnectionChecker(t *testing.T) {
	cm := NewConnectionManager("amqp://localhost", WithLogger(quietLogger()))
	result := NewConnectionChecker(cm).Check(context.Background())

	assert.Equal(t, "rabbitmq", result.Name)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Equal(t, ErrConnectionNotReady.Error(), result.Error)
}

func TestQueueChecker(t *testing.T) {
	ctx := context.Background()

	t.Run("missing queue", func(t *testing.T) {
		result := NewQueueChecker("orders", newFakeBroker(), 0).Check(ctx)

		assert.Equal(t, "queue_orders", result.Name)
		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Contains(t, result.Error, "NOT_FOUND")
	})

	t.Run("queue without consumers", func(t *testing.T) {
		broker := newFakeBroker()
		_, err := broker.QueueDeclare("orders", true, false, false, false, nil)
		require.NoError(t, err)

		result := NewQueueChecker("orders", broker, 0).Check(ctx)
		assert.Equal(t, StatusDegraded, result.Status)
		assert.Equal(t, 0, result.Details["consumer_count"])
	})

	t.Run("backlog", func(t *testing.T) {
		broker := newFakeBroker()
		_, err := broker.Consume("orders", "server", false, false, false, false, nil)
		require.NoError(t, err)
		for i := 0; i < 3; i++ {
			require.NoError(t, broker.PublishWithContext(ctx, "", "orders", false, false, amqp.Publishing{}))
		}

		assert.Equal(t, StatusHealthy, NewQueueChecker("orders", broker, 0).Check(ctx).Status)

		result := NewQueueChecker("orders", broker, 2).Check(ctx)
		assert.Equal(t, StatusDegraded, result.Status)
		assert.Equal(t, 3, result.Details["message_count"])
	})
}

func TestCheckAll(t *testing.T) {
	status, results := CheckAll(context.Background(),
		staticChecker{"a", StatusHealthy},
		staticChecker{"b", StatusDegraded},
	)
	assert.Equal(t, StatusDegraded, status)
	assert.Len(t, results, 2)

	status, _ = CheckAll(context.Background(),
		staticChecker{"a", StatusUnhealthy},
		staticChecker{"b", StatusDegraded},
	)
	assert.Equal(t, StatusUnhealthy, status)

	status, results = CheckAll(context.Background())
	assert.Equal(t, StatusHealthy, status)
	assert.Empty(t, results)
}
