package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingMailer struct {
	mu      sync.Mutex
	sent    []Request
	failFor int
}

func (m *recordingMailer) Send(_ context.Context, req Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor > 0 {
		m.failFor--
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, req)
	return nil
}

func (m *recordingMailer) delivered() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.sent...)
}

func TestDispatcherDeliversQueued(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, zap.NewNop().Sugar(), 8)

	d.Dispatch(Request{Recipient: "a@example.com", Kind: KindOrderConfirmed})
	d.Dispatch(Request{Recipient: "a@example.com", Kind: KindOrderShipped})
	d.Close()

	sent := mailer.delivered()
	require.Len(t, sent, 2)
	assert.Equal(t, KindOrderConfirmed, sent[0].Kind)
	assert.Equal(t, KindOrderShipped, sent[1].Kind)
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	mailer := &recordingMailer{failFor: 1}
	d := NewDispatcher(mailer, zap.NewNop().Sugar(), 8)

	d.Dispatch(Request{Recipient: "a@example.com", Kind: KindPaymentConfirmed})
	d.Close()

	sent := mailer.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, KindPaymentConfirmed, sent[0].Kind)
}

func TestDispatchNeverBlocks(t *testing.T) {
	// No worker draining the queue; the second dispatch must drop, not block.
	d := &Dispatcher{
		log:   zap.NewNop().Sugar(),
		queue: make(chan Request, 1),
	}

	d.Dispatch(Request{Kind: KindReviewReminder})
	d.Dispatch(Request{Kind: KindReviewReminder})
}
