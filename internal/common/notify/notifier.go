// internal/common/notify/notifier.go
package notify

import "context"

// HandoverPack is the compliance-evidence summary emailed to the homeowner.
// Rendering the full PDF bundle is an external collaborator; the engine only
// supplies the evidence inventory.
type HandoverPack struct {
	ProjectID      string   `json:"projectId"`
	ContractorName string   `json:"contractorName"`
	LogEntryCount  int      `json:"logEntryCount"`
	Categories     []string `json:"categories"`
	GeneratedAt    string   `json:"generatedAt"`
}

// Notifier delivers the two outbound notices the engine produces. Delivery
// failures are logged and never fail the originating command.
type Notifier interface {
	SendHandoverPack(ctx context.Context, recipient string, pack HandoverPack) error
	SendDelayNotice(ctx context.Context, projectID string, hoursSinceUpdate int) error
}

// Noop discards all notices. Used in tests and when AWS delivery is disabled.
type Noop struct{}

func (Noop) SendHandoverPack(context.Context, string, HandoverPack) error { return nil }
func (Noop) SendDelayNotice(context.Context, string, int) error           { return nil }
