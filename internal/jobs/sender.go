package jobs

import (
	"context"
	"log"
)

// Sender delivers a rendered message to a recipient. Wiring a real mail or
// SMS provider is a deployment concern; the engine only needs the seam.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes messages to the process log.
type LogSender struct{}

func (LogSender) Send(_ context.Context, recipient, subject, body string) error {
	log.Printf("send recipient=%s subject=%q bytes=%d", recipient, subject, len(body))
	return nil
}
