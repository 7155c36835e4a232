package amqp

import (
	"context"

	"spendwise/internal/ledger"
	"spendwise/internal/log"
)

// EventPublisher is satisfied by *Client.
type EventPublisher interface {
	Publish(ctx context.Context, msg *LedgerEventMessage) error
}

// Publisher forwards ledger bus events to the broker. Failures are logged and
// never reach the mutation that produced the event.
type Publisher struct {
	client EventPublisher
	logger *log.Logger
}

func NewPublisher(client EventPublisher, logger *log.Logger) *Publisher {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Publisher{client: client, logger: logger.WithComponent(log.ComponentAMQP)}
}

// Attach subscribes the publisher to bus.
func (p *Publisher) Attach(bus *ledger.Bus) (detach func()) {
	return bus.Subscribe(p.Handle)
}

func (p *Publisher) Handle(e ledger.Event) {
	msg := NewLedgerEventMessage(e)
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, msg); err != nil {
		p.logger.Warn("Failed to publish ledger event",
			log.NewFields().
				WithOperation(log.OpPublish).
				WithUser(e.UserID).
				WithError(err).
				ToSlice()...)
	}
}
