// Package notify delivers plain text messages by email.
package notify

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("bookingchecker/notify")

const SenderName = "Automagic Körskole Checker"

// Sender formats address with the display name used on every message.
func Sender(address string) string {
	return fmt.Sprintf("%s <%s>", SenderName, address)
}

type Message struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Notifier sends a message, a nil error means the message was accepted for
// delivery.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
