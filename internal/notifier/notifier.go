package notifier

import "context"

// Notifier delivers operator messages.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// CommandHandler answers a chat command. An empty reply sends nothing.
type CommandHandler func(command string) string

// Noop drops every message. It is used when no bot token is configured.
type Noop struct{}

func (Noop) Send(context.Context, string) error { return nil }

// RetrySender is implemented by notifiers that retry transient failures.
type RetrySender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Deliver sends text through n, retrying up to maxRetries times when n
// supports it.
func Deliver(ctx context.Context, n Notifier, text string, maxRetries int) error {
	if rs, ok := n.(RetrySender); ok {
		return rs.SendWithRetry(ctx, text, maxRetries)
	}
	return n.Send(ctx, text)
}
