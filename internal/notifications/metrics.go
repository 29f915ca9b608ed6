package notifications

import (
	"context"
	"time"

	"github.com/mynaner/zero2prod/internal/pkg/metrics"
)

type instrumentedSender struct {
	next Sender
}

// Instrument wraps s so every send is counted and timed.
func Instrument(s Sender) Sender {
	return &instrumentedSender{next: s}
}

func (s *instrumentedSender) Transport() string {
	return s.next.Transport()
}

func (s *instrumentedSender) Send(ctx context.Context, msg Message) error {
	start := time.Now()
	err := s.next.Send(ctx, msg)

	status := "sent"
	if err != nil {
		status = "failed"
	}
	transport := s.next.Transport()
	metrics.EmailsSent.WithLabelValues(transport, string(msg.Kind), status).Inc()
	metrics.EmailSendDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())

	return err
}
