package notify

import (
	"context"

	"github.com/go-scripts/chapterhook/internal/messaging"
)

// Sink sends status messages to the page agent of one tab. Nothing is
// returned to the caller; undeliverable messages are dropped.
type Sink struct {
	ch    messaging.Channel
	tabID string
}

// NewSink binds a Sink to tabID
func NewSink(ch messaging.Channel, tabID string) Sink {
	return Sink{ch: ch, tabID: tabID}
}

// Notify posts msg to the tab
func (s Sink) Notify(ctx context.Context, msg string) {
	messaging.Notify(ctx, s.ch, s.tabID, msg)
}
