// Package notify delivers customer notifications off the request path.
// Delivery is fire-and-forget: a failed or dropped notification never
// affects the order state that triggered it.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Kind names a notification template.
type Kind string

const (
	KindOrderConfirmed   Kind = "order-confirmed"
	KindOrderShipped     Kind = "order-shipped"
	KindOrderDelivered   Kind = "order-delivered"
	KindPaymentConfirmed Kind = "payment-confirmed"
	KindReviewReminder   Kind = "review-reminder"
)

// Request is one notification to deliver. Params feed the template;
// Attachment is an optional file path (the delivered-order invoice).
type Request struct {
	Recipient  string
	Kind       Kind
	Params     map[string]string
	Attachment string
}

// Mailer sends a single rendered notification.
type Mailer interface {
	Send(ctx context.Context, req Request) error
}

// Dispatcher feeds requests to a single delivery worker through a
// bounded queue. A full queue drops the request rather than blocking
// the caller.
type Dispatcher struct {
	mailer    Mailer
	log       *zap.SugaredLogger
	queue     chan Request
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(mailer Mailer, log *zap.SugaredLogger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	d := &Dispatcher{
		mailer: mailer,
		log:    log,
		queue:  make(chan Request, queueSize),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues a notification. It never blocks; when the queue is
// full the request is dropped and logged.
func (d *Dispatcher) Dispatch(req Request) {
	select {
	case d.queue <- req:
	default:
		d.log.Warnw("notification queue full, dropping", "kind", req.Kind, "recipient", req.Recipient)
	}
}

// Close stops accepting requests and waits for queued ones to drain.
// Safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for req := range d.queue {
		d.deliver(req)
	}
}

func (d *Dispatcher) deliver(req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return retry.RetryableError(d.mailer.Send(ctx, req))
	})
	if err != nil {
		d.log.Errorw("notification delivery failed", "kind", req.Kind, "recipient", req.Recipient, "error", err)
		return
	}
	d.log.Infow("notification delivered", "kind", req.Kind, "recipient", req.Recipient)
}

// LogMailer writes notifications to the log instead of an SMTP relay.
// It stands in for a real mailer in development and tests.
type LogMailer struct {
	log *zap.SugaredLogger
}

func NewLogMailer(log *zap.SugaredLogger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, req Request) error {
	m.log.Infow("mail",
		"to", req.Recipient,
		"kind", req.Kind,
		"params", fmt.Sprintf("%v", req.Params),
		"attachment", req.Attachment,
	)
	return nil
}
