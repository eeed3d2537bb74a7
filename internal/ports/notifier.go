package ports

import "context"

// Notifier delivers outbound operator messages.
// Notify must never block trading logic and never returns an error; delivery
// failures are the implementation's concern to log.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
