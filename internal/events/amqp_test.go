package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu     sync.Mutex
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestAMQPPublishSendsEnvelope(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(nil, ch, "energytrack.events", quietLogger())

	err := p.Publish(context.Background(), RoutingReadingAccepted, ReadingAccepted{ReadingID: 4, MeterID: 2, Value: 31.5})
	require.NoError(t, err)
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "energytrack.events", sent.exchange)
	assert.Equal(t, RoutingReadingAccepted, sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, RoutingReadingAccepted, sent.msg.Type)

	var env map[string]any
	require.NoError(t, json.Unmarshal(sent.msg.Body, &env))
	assert.Equal(t, sent.msg.MessageId, env["id"])
}

func TestAMQPPublishWrapsBrokerErrors(t *testing.T) {
	brokerErr := errors.New("channel/connection is not open")
	p := newAMQPPublisher(nil, &fakeChannel{err: brokerErr}, "ex", quietLogger())

	err := p.Publish(context.Background(), RoutingSurgeDetected, SurgeDetected{MeterID: 1})
	assert.ErrorIs(t, err, brokerErr)
}

func TestAMQPPublishAfterClose(t *testing.T) {
	ch := &fakeChannel{}
	p := newAMQPPublisher(nil, ch, "ex", quietLogger())

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), RoutingSurgeDetected, SurgeDetected{MeterID: 1})
	assert.ErrorIs(t, err, ErrPublisherClosed)
	assert.Empty(t, ch.sent)
}
