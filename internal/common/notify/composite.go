// internal/common/notify/composite.go
package notify

import "context"

// EmailSender is the handover-pack channel.
type EmailSender interface {
	SendHandoverPack(ctx context.Context, recipient string, pack HandoverPack) error
}

// SMSSender is the delay-notice channel.
type SMSSender interface {
	SendDelayNotice(ctx context.Context, projectID string, hoursSinceUpdate int) error
}

// Composite routes each notice to its configured channel. A nil channel
// means delivery is disabled for that notice type.
type Composite struct {
	Email EmailSender
	SMS   SMSSender
}

func (c Composite) SendHandoverPack(ctx context.Context, recipient string, pack HandoverPack) error {
	if c.Email == nil {
		return nil
	}
	return c.Email.SendHandoverPack(ctx, recipient, pack)
}

func (c Composite) SendDelayNotice(ctx context.Context, projectID string, hoursSinceUpdate int) error {
	if c.SMS == nil {
		return nil
	}
	return c.SMS.SendDelayNotice(ctx, projectID, hoursSinceUpdate)
}
