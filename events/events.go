// Package events turns raw game-server moderation events into validated
// domain values and hands them to the processing pipeline. Adapters push raw
// events in; malformed ones are logged and dropped here so the pipeline only
// ever sees well-formed input.
package events

import (
	"strings"
	"time"

	"punishment-bridge/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PunishmentEvent is a raw "punishment issued" notification as the game
// plugin reports it. Ids are unvalidated strings at this point.
type PunishmentEvent struct {
	Type          string `json:"type"`
	ExternalID    string `json:"externalId"`
	PlayerID      string `json:"playerId"`
	PlayerName    string `json:"playerName"`
	ModeratorID   string `json:"moderatorId,omitempty"` // empty when issued from the console
	ModeratorName string `json:"moderatorName,omitempty"`
	Reason        string `json:"reason"`
	Duration      *int64 `json:"duration,omitempty"` // seconds, nil or <=0 = permanent
	JailName      string `json:"jailName,omitempty"`
}

// RevokeEvent is a raw "punishment lifted" notification. The type is
// optional; correlation runs on the external id alone, the type only
// cross-checks the stored row when the producer supplies it.
type RevokeEvent struct {
	Type          string `json:"type,omitempty"`
	ExternalID    string `json:"externalId"`
	Reason        string `json:"reason,omitempty"`
	ModeratorID   string `json:"moderatorId,omitempty"`
	ModeratorName string `json:"moderatorName,omitempty"`
}

// Sink receives validated work. Implemented by the punishment pipeline;
// both methods return immediately and process in the background.
type Sink interface {
	SubmitPunishment(p *model.Punishment)
	SubmitRevocation(r model.Revocation)
}

// Dispatcher validates raw events and forwards them to the sink.
type Dispatcher struct {
	sink   Sink
	logger *zap.Logger
}

// NewDispatcher builds a dispatcher over the given sink.
func NewDispatcher(sink Sink, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger}
}

// DispatchPunishment validates and forwards a punishment event. Invalid
// events are dropped with a log line, never propagated as errors: the game
// server fires and forgets.
func (d *Dispatcher) DispatchPunishment(raw PunishmentEvent) {
	ptype, ok := model.ParsePunishmentType(raw.Type)
	if !ok {
		d.logger.Warn("Dropping event with unknown punishment type",
			zap.String("type", raw.Type), zap.String("externalId", raw.ExternalID))
		return
	}
	playerID, err := uuid.Parse(raw.PlayerID)
	if err != nil {
		d.logger.Warn("Dropping event with malformed player id",
			zap.String("playerId", raw.PlayerID), zap.String("externalId", raw.ExternalID))
		return
	}
	if strings.TrimSpace(raw.ExternalID) == "" {
		d.logger.Warn("Dropping event without external id",
			zap.String("player", raw.PlayerName))
		return
	}

	p := model.NewPunishment(ptype, playerID, raw.PlayerName,
		parseModeratorID(raw.ModeratorID), moderatorNameOrConsole(raw.ModeratorName),
		raw.Reason, raw.Duration)
	p.ExternalID = raw.ExternalID
	if raw.JailName != "" {
		jail := raw.JailName
		p.JailName = &jail
	}

	d.sink.SubmitPunishment(p)
}

// DispatchRevoke validates and forwards a revoke event.
func (d *Dispatcher) DispatchRevoke(raw RevokeEvent) {
	var ptype model.PunishmentType
	if raw.Type != "" {
		parsed, ok := model.ParsePunishmentType(raw.Type)
		if !ok {
			d.logger.Warn("Dropping revoke with unknown punishment type",
				zap.String("type", raw.Type), zap.String("externalId", raw.ExternalID))
			return
		}
		ptype = parsed
	}
	if strings.TrimSpace(raw.ExternalID) == "" {
		d.logger.Warn("Dropping revoke without external id")
		return
	}

	d.sink.SubmitRevocation(model.Revocation{
		Type:          ptype,
		ExternalID:    raw.ExternalID,
		Reason:        raw.Reason,
		Kind:          model.DetermineRevokeKind(raw.Reason),
		ModeratorID:   parseModeratorID(raw.ModeratorID),
		ModeratorName: raw.ModeratorName,
		At:            time.Now().UTC(),
	})
}

// parseModeratorID tolerates empty and malformed moderator ids; those events
// are still valid, just system-issued.
func parseModeratorID(raw string) uuid.NullUUID {
	if raw == "" {
		return uuid.NullUUID{}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: id, Valid: true}
}

func moderatorNameOrConsole(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Console"
	}
	return name
}
