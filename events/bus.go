package events

import (
	"context"

	"go.uber.org/zap"
)

// Bus is the in-process source the host pushes game-plugin events into. It
// decouples the publisher from validation and processing: Publish never
// blocks, a full buffer drops the event with a log line.
type Bus struct {
	punishments chan PunishmentEvent
	revokes     chan RevokeEvent
	logger      *zap.Logger
}

// NewBus builds a bus with the given buffer per event kind.
func NewBus(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = 256
	}
	return &Bus{
		punishments: make(chan PunishmentEvent, buffer),
		revokes:     make(chan RevokeEvent, buffer),
		logger:      logger,
	}
}

// PublishPunishment hands a raw punishment event to the bus.
func (b *Bus) PublishPunishment(e PunishmentEvent) {
	select {
	case b.punishments <- e:
	default:
		b.logger.Error("Event bus full, dropping punishment event",
			zap.String("externalId", e.ExternalID))
	}
}

// PublishRevoke hands a raw revoke event to the bus.
func (b *Bus) PublishRevoke(e RevokeEvent) {
	select {
	case b.revokes <- e:
	default:
		b.logger.Error("Event bus full, dropping revoke event",
			zap.String("externalId", e.ExternalID))
	}
}

// Run consumes the bus until the context ends, feeding each event through
// the dispatcher.
func (b *Bus) Run(ctx context.Context, d *Dispatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.punishments:
			d.DispatchPunishment(e)
		case e := <-b.revokes:
			d.DispatchRevoke(e)
		}
	}
}
