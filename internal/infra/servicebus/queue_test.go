package servicebus

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReceiver struct {
	msgs   []*azservicebus.ReceivedMessage
	err    error
	block  bool
	calls  int
	closed bool
}

func (r *fakeReceiver) ReceiveMessages(ctx context.Context, maxMessages int, options *azservicebus.ReceiveMessagesOptions) ([]*azservicebus.ReceivedMessage, error) {
	r.calls++
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	if len(r.msgs) == 0 {
		return nil, nil
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return []*azservicebus.ReceivedMessage{m}, nil
}

func (r *fakeReceiver) Close(ctx context.Context) error {
	r.closed = true
	return nil
}

type fakeSender struct {
	sent   [][]byte
	err    error
	closed bool
}

func (s *fakeSender) SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message.Body)
	return nil
}

func (s *fakeSender) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

func newTestQueue(wait time.Duration, r *fakeReceiver, s *fakeSender) (*Queue, *int) {
	created := 0
	q := newQueue(wait, slog.New(slog.NewTextHandler(io.Discard, nil)))
	q.newReceiver = func(queueName string) (messageReceiver, error) {
		created++
		return r, nil
	}
	q.newSender = func(queueName string) (messageSender, error) {
		return s, nil
	}
	return q, &created
}

func TestQueue_Receive(t *testing.T) {
	r := &fakeReceiver{msgs: []*azservicebus.ReceivedMessage{
		{MessageID: "m1", Body: []byte("hello-world")},
		{MessageID: "m2"},
	}}
	q, created := newTestQueue(time.Second, r, nil)

	msg, err := q.Receive(context.Background(), "work")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, "work", msg.Queue)
	assert.Equal(t, []byte("hello-world"), msg.Body)

	msg, err = q.Receive(context.Background(), "work")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Nil(t, msg.Body)

	assert.Equal(t, 1, *created, "receiver should be cached per queue")
}

func TestQueue_ReceiveTimesOutWithNoMessage(t *testing.T) {
	r := &fakeReceiver{block: true}
	q, _ := newTestQueue(10*time.Millisecond, r, nil)

	msg, err := q.Receive(context.Background(), "work")
	assert.NoError(t, err)
	assert.Nil(t, msg)
}

func TestQueue_ReceiveCancelled(t *testing.T) {
	r := &fakeReceiver{block: true}
	q, _ := newTestQueue(time.Hour, r, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg, err := q.Receive(ctx, "work")
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueue_ReceiveError(t *testing.T) {
	r := &fakeReceiver{err: errors.New("amqp: link detached")}
	q, _ := newTestQueue(time.Second, r, nil)

	msg, err := q.Receive(context.Background(), "work")
	assert.Nil(t, msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, r.err)
	assert.Contains(t, err.Error(), "work")
}

func TestQueue_ReceiverCreationError(t *testing.T) {
	q := newQueue(time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	q.newReceiver = func(queueName string) (messageReceiver, error) {
		return nil, errors.New("entity not found")
	}

	_, err := q.Receive(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestQueue_SendAndClose(t *testing.T) {
	r := &fakeReceiver{}
	s := &fakeSender{}
	q, _ := newTestQueue(time.Second, r, s)

	require.NoError(t, q.Send(context.Background(), "work", []byte("job-1")))
	require.NoError(t, q.Send(context.Background(), "work", []byte("job-2")))
	_, _ = q.Receive(context.Background(), "work")

	assert.Equal(t, [][]byte{[]byte("job-1"), []byte("job-2")}, s.sent)

	require.NoError(t, q.Close(context.Background()))
	assert.True(t, r.closed)
	assert.True(t, s.closed)
}

func TestQueue_SendError(t *testing.T) {
	s := &fakeSender{err: errors.New("throttled")}
	q, _ := newTestQueue(time.Second, &fakeReceiver{}, s)

	err := q.Send(context.Background(), "work", []byte("x"))
	assert.ErrorIs(t, err, s.err)
}
