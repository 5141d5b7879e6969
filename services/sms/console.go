package smssvc

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/admitflow/core"
)

// ConsoleGateway prints SMS instead of sending them.
type ConsoleGateway struct {
	std      *log.Logger
	mu       sync.Mutex
	sent     []core.SMSMessage
	statuses map[string]core.DeliveryStatus
}

var _ core.SMSGateway = (*ConsoleGateway)(nil)

// NewConsoleGateway reports messages delivered on their first status check.
func NewConsoleGateway(std *log.Logger) *ConsoleGateway {
	return &ConsoleGateway{std: std, statuses: make(map[string]core.DeliveryStatus)}
}

func (gw *ConsoleGateway) Send(_ context.Context, msg core.SMSMessage) (core.SMSReceipt, error) {
	id := uuid.NewString()

	gw.mu.Lock()
	gw.sent = append(gw.sent, msg)
	gw.statuses[id] = core.DeliveryPending
	gw.mu.Unlock()

	if gw.std != nil {
		gw.std.Printf("SMS to %s [DLT %s]: %s", msg.To, msg.DLTTemplateID, msg.Content)
	}
	return core.SMSReceipt{ProviderMessageID: id, Status: core.DeliveryPending}, nil
}

func (gw *ConsoleGateway) DeliveryStatus(_ context.Context, providerMessageID string) (core.DeliveryStatus, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	status, ok := gw.statuses[providerMessageID]
	if !ok {
		return core.DeliveryFailed, nil
	}
	if status == core.DeliveryPending {
		gw.statuses[providerMessageID] = core.DeliverySuccess
	}
	return gw.statuses[providerMessageID], nil
}

// Sent returns a copy of the messages sent so far.
func (gw *ConsoleGateway) Sent() []core.SMSMessage {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]core.SMSMessage(nil), gw.sent...)
}
