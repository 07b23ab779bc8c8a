package notify

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Writer prints messages instead of sending them, for dry runs.
type Writer struct {
	W io.Writer
}

func (w Writer) Send(ctx context.Context, msg Message) error {
	_, err := fmt.Fprintf(
		w.W,
		"From: %s\nTo: %s\nSubject: %s\n\n%s\n",
		msg.From,
		strings.Join(msg.To, ", "),
		msg.Subject,
		msg.Text,
	)
	return err
}
