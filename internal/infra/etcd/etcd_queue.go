// internal/infra/etcd/etcd_queue.go
package etcd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"aci-dispatcher/internal/domain"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultQueuePrefix is the etcd prefix under which each queue gets a directory.
	DefaultQueuePrefix = "/dispatcher/queues/"
	// DefaultRequestTimeout bounds a single read or claim when none is configured.
	DefaultRequestTimeout = 5 * time.Second
)

// etcdQueue is a FIFO queue where each message is a key under
// {prefix}/{queue}/. Messages are ordered by create revision and claimed by
// deleting the key in a transaction, so a returned message is already gone.
type etcdQueue struct {
	kv             clientv3.KV
	watcher        clientv3.Watcher
	prefix         string
	wait           time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
}

// Queue is both ends of an etcd-backed queue.
type Queue interface {
	domain.QueueService
	domain.QueueSender
}

// NewEtcdQueue creates a queue rooted at prefix. wait bounds how long a
// single Receive blocks on an empty queue; requestTimeout bounds each
// individual etcd read or write.
func NewEtcdQueue(client *clientv3.Client, prefix string, wait, requestTimeout time.Duration, logger *slog.Logger) Queue {
	return newEtcdQueue(client, client, prefix, wait, requestTimeout, logger)
}

func newEtcdQueue(kv clientv3.KV, watcher clientv3.Watcher, prefix string, wait, requestTimeout time.Duration, logger *slog.Logger) *etcdQueue {
	if prefix == "" {
		prefix = DefaultQueuePrefix
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &etcdQueue{
		kv:             kv,
		watcher:        watcher,
		prefix:         prefix,
		wait:           wait,
		requestTimeout: requestTimeout,
		logger:         logger.With("component", "etcd-queue"),
		tracer:         otel.Tracer("aci-dispatcher-etcd-queue"),
	}
}

// QueueDir returns the key prefix holding the messages of queueName.
func QueueDir(prefix, queueName string) string {
	return path.Join(prefix, queueName) + "/"
}

// Send appends body to queueName.
func (q *etcdQueue) Send(ctx context.Context, queueName string, body []byte) error {
	ctx, span := q.tracer.Start(ctx, "queue.etcd.Send")
	defer span.End()

	key := QueueDir(q.prefix, queueName) + uuid.NewString()
	span.SetAttributes(attribute.String("queue.name", queueName), attribute.String("etcd.key", key))

	reqCtx, cancel := context.WithTimeout(ctx, q.requestTimeout)
	defer cancel()

	// Create only if absent so a key is never overwritten.
	resp, err := q.kv.Txn(reqCtx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(body))).
		Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put message to etcd")
		return fmt.Errorf("failed to enqueue on %s: %w", queueName, err)
	}
	if !resp.Succeeded {
		return fmt.Errorf("failed to enqueue on %s: key %s already exists", queueName, key)
	}
	return nil
}

// Receive claims the oldest message on queueName, blocking up to the wait
// window for one to arrive. Returns (nil, nil) when the window expires with
// the queue still empty. Failing to read or claim is always an error, even
// if it happens because etcd did not answer in time.
func (q *etcdQueue) Receive(ctx context.Context, queueName string) (*domain.Message, error) {
	ctx, span := q.tracer.Start(ctx, "queue.etcd.Receive",
		trace.WithAttributes(attribute.String("queue.name", queueName)))
	defer span.End()

	dir := QueueDir(q.prefix, queueName)
	waitCtx, cancel := context.WithTimeout(ctx, q.wait)
	defer cancel()

	for {
		msg, rev, err := q.claimOldest(ctx, queueName, dir)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to claim message")
			return nil, err
		}
		if msg != nil {
			span.SetAttributes(attribute.String("message.id", msg.ID))
			return msg, nil
		}

		if err := q.waitForPut(waitCtx, dir, rev); err != nil {
			if windowExpired(ctx, waitCtx, err) {
				return nil, nil
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to watch queue")
			return nil, err
		}
	}
}

// claimOldest tries to take the first message in dir within one request
// timeout. When dir is empty it returns the store revision to watch from.
func (q *etcdQueue) claimOldest(ctx context.Context, queueName, dir string) (*domain.Message, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, q.requestTimeout)
	defer cancel()

	for {
		resp, err := q.kv.Get(ctx, dir, clientv3.WithFirstCreate()...)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read queue %s from etcd: %w", queueName, err)
		}
		if len(resp.Kvs) == 0 {
			return nil, resp.Header.Revision, nil
		}

		kv := resp.Kvs[0]
		key := string(kv.Key)
		txn, err := q.kv.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", kv.ModRevision)).
			Then(clientv3.OpDelete(key)).
			Commit()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to claim %s from etcd: %w", key, err)
		}
		if !txn.Succeeded {
			// another consumer got it first
			q.logger.Debug("lost race for message", "key", key)
			continue
		}

		return &domain.Message{
			ID:    path.Base(key),
			Queue: queueName,
			Body:  kv.Value,
		}, 0, nil
	}
}

// waitForPut blocks until a key is put under dir after revision rev.
func (q *etcdQueue) waitForPut(ctx context.Context, dir string, rev int64) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wch := q.watcher.Watch(watchCtx, dir, clientv3.WithPrefix(), clientv3.WithRev(rev+1), clientv3.WithFilterDelete())
	for resp := range wch {
		if err := resp.Err(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("watch on %s failed: %w", dir, err)
		}
		for _, ev := range resp.Events {
			if ev.Type == clientv3.EventTypePut {
				return nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("watch on %s closed", dir)
}

// windowExpired reports whether a watch error only means the receive window
// ran out while the caller's own context is still live.
func windowExpired(ctx, waitCtx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil
}
