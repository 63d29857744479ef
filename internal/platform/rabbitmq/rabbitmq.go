package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// New dials the broker and declares the ingest queue, so the API and the
// worker both start against a queue that is known to exist. The declare
// doubles as the startup health check. Declare args must stay in sync with
// the consumer and publisher.
func New(ctx context.Context, url, ingestQueue string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	declareCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	declared := make(chan error, 1)
	go func() {
		_, declareErr := ch.QueueDeclare(
			ingestQueue,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,
		)
		declared <- declareErr
	}()

	select {
	case <-declareCtx.Done():
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq startup check timeout: %w", declareCtx.Err())
	case err := <-declared:
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("declare ingest queue %q failed: %w", ingestQueue, err)
		}
	}
	return conn, nil
}
