package engine

import (
	"context"
)

// Notifier pings the moderation team's ops channel when the engine takes an
// automatic action. Delivery is best-effort; failures are logged and never
// affect the decision.
type Notifier interface {
	SendReport(ctx context.Context, report Report) error
}
