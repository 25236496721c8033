// internal/infra/servicebus/queue.go
package servicebus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"aci-dispatcher/internal/domain"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type messageReceiver interface {
	ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error)
	Close(ctx context.Context) error
}

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// Queue receives from and sends to Service Bus queues. Receivers use
// ReceiveAndDelete, so a message is gone from the queue once returned.
type Queue struct {
	client      *azservicebus.Client
	newReceiver func(queueName string) (messageReceiver, error)
	newSender   func(queueName string) (messageSender, error)
	receivers   map[string]messageReceiver // cache, one per queue
	senders     map[string]messageSender
	wait        time.Duration
	mu          sync.Mutex
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewQueue wraps client. wait bounds how long a single Receive blocks when
// the queue is empty.
func NewQueue(client *azservicebus.Client, wait time.Duration, logger *slog.Logger) *Queue {
	q := newQueue(wait, logger)
	q.client = client
	q.newReceiver = func(queueName string) (messageReceiver, error) {
		return client.NewReceiverForQueue(queueName, &azservicebus.ReceiverOptions{
			ReceiveMode: azservicebus.ReceiveModeReceiveAndDelete,
		})
	}
	q.newSender = func(queueName string) (messageSender, error) {
		return client.NewSender(queueName, nil)
	}
	return q
}

func newQueue(wait time.Duration, logger *slog.Logger) *Queue {
	return &Queue{
		receivers: make(map[string]messageReceiver),
		senders:   make(map[string]messageSender),
		wait:      wait,
		logger:    logger.With("component", "servicebus-queue"),
		tracer:    otel.Tracer("aci-dispatcher-servicebus"),
	}
}

// Receive removes and returns the next message on queueName. It returns
// (nil, nil) if nothing arrived within the wait window.
func (q *Queue) Receive(ctx context.Context, queueName string) (*domain.Message, error) {
	ctx, span := q.tracer.Start(ctx, "queue.servicebus.Receive",
		trace.WithAttributes(attribute.String("queue.name", queueName)))
	defer span.End()

	receiver, err := q.getOrCreateReceiver(queueName)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create receiver")
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, q.wait)
	defer cancel()

	msgs, err := receiver.ReceiveMessages(waitCtx, 1, nil)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to receive message")
		return nil, fmt.Errorf("failed to receive from queue %s: %w", queueName, err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	m := msgs[0]
	span.SetAttributes(attribute.String("message.id", m.MessageID), attribute.Int("message.size", len(m.Body)))
	return &domain.Message{ID: m.MessageID, Queue: queueName, Body: m.Body}, nil
}

// Send publishes body on queueName.
func (q *Queue) Send(ctx context.Context, queueName string, body []byte) error {
	ctx, span := q.tracer.Start(ctx, "queue.servicebus.Send",
		trace.WithAttributes(attribute.String("queue.name", queueName)))
	defer span.End()

	sender, err := q.getOrCreateSender(queueName)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := sender.SendMessage(ctx, &azservicebus.Message{Body: body}, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send message")
		return fmt.Errorf("failed to send to queue %s: %w", queueName, err)
	}
	return nil
}

// Close closes every cached link and then the client.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var errs []error
	for name, r := range q.receivers {
		if err := r.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close receiver for %s: %w", name, err))
		}
		delete(q.receivers, name)
	}
	for name, s := range q.senders {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close sender for %s: %w", name, err))
		}
		delete(q.senders, name)
	}
	if q.client != nil {
		if err := q.client.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close service bus client: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (q *Queue) getOrCreateReceiver(queueName string) (messageReceiver, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if r, ok := q.receivers[queueName]; ok {
		return r, nil
	}

	r, err := q.newReceiver(queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to create receiver for queue %s: %w", queueName, err)
	}
	q.receivers[queueName] = r
	q.logger.Info("created receive-and-delete receiver", "queue", queueName)
	return r, nil
}

func (q *Queue) getOrCreateSender(queueName string) (messageSender, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if s, ok := q.senders[queueName]; ok {
		return s, nil
	}

	s, err := q.newSender(queueName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender for queue %s: %w", queueName, err)
	}
	q.senders[queueName] = s
	return s, nil
}
