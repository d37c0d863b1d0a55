package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PunishmentType classifies a moderation action coming from the game server.
type PunishmentType string

const (
	PunishmentBan  PunishmentType = "ban"
	PunishmentMute PunishmentType = "mute"
	PunishmentKick PunishmentType = "kick"
	PunishmentJail PunishmentType = "jail"
)

// ParsePunishmentType returns the punishment type for a code such as "ban".
func ParsePunishmentType(code string) (PunishmentType, bool) {
	switch PunishmentType(strings.ToLower(code)) {
	case PunishmentBan, PunishmentMute, PunishmentKick, PunishmentJail:
		return PunishmentType(strings.ToLower(code)), true
	}
	return "", false
}

// DisplayName returns the human readable name used in embeds.
func (t PunishmentType) DisplayName() string {
	switch t {
	case PunishmentBan:
		return "Ban"
	case PunishmentMute:
		return "Mute"
	case PunishmentKick:
		return "Kick"
	case PunishmentJail:
		return "Jail"
	}
	return string(t)
}

// Emoji returns the emoji shown next to the type in embeds.
func (t PunishmentType) Emoji() string {
	switch t {
	case PunishmentBan:
		return "🚫"
	case PunishmentMute:
		return "🔇"
	case PunishmentKick:
		return "👢"
	case PunishmentJail:
		return "🏢"
	}
	return "❔"
}

// CanBeTemporary reports whether the type supports a duration. Kicks are
// instantaneous and never carry one.
func (t PunishmentType) CanBeTemporary() bool {
	return t != PunishmentKick
}

// CanBeRevoked reports whether a revoke event is meaningful for the type.
// The store still accepts a revoke for a kick row; this is policy, not an
// enforced constraint.
func (t PunishmentType) CanBeRevoked() bool {
	return t != PunishmentKick
}

// RevokeKind classifies how a punishment ended.
type RevokeKind string

const (
	RevokeManual    RevokeKind = "manual"
	RevokeAutomatic RevokeKind = "automatic"
	RevokeExpired   RevokeKind = "expired"
)

// DetermineRevokeKind classifies a free-text unban reason. Empty reasons are
// treated as natural expiry, which matches how LiteBans reports them.
func DetermineRevokeKind(reason string) RevokeKind {
	if strings.TrimSpace(reason) == "" {
		return RevokeExpired
	}
	lower := strings.ToLower(reason)
	if strings.Contains(lower, "expired") {
		return RevokeExpired
	}
	if strings.Contains(lower, "automatic") {
		return RevokeAutomatic
	}
	return RevokeManual
}

// Punishment is one moderation action and its Discord dispatch state. The
// thread and message ids are pointers because they are populated only after
// the corresponding Discord call succeeds; a nil pointer means "never sent",
// never a zero sentinel.
type Punishment struct {
	ID            int64          `db:"id"`
	Type          PunishmentType `db:"type"`
	PlayerID      uuid.UUID      `db:"player_id"`
	PlayerName    string         `db:"player_name"`
	ModeratorID   uuid.NullUUID  `db:"moderator_id"` // invalid = system-issued
	ModeratorName string         `db:"moderator_name"`
	ExternalID    string         `db:"external_id"` // id assigned by the ban plugin
	Reason        string         `db:"reason"`
	Duration      *int64         `db:"duration"` // seconds, nil or <=0 = permanent
	ExpiresAt     *time.Time     `db:"expires_at"`
	JailName      *string        `db:"jail_name"`

	PlayerThreadID     *string `db:"player_thread_id"`
	ModeratorThreadID  *string `db:"moderator_thread_id"`
	PlayerMessageID    *string `db:"player_message_id"`
	ModeratorMessageID *string `db:"moderator_message_id"`
	LogMessageID       *string `db:"log_message_id"`

	Active bool `db:"active"`

	RevokedAt           *time.Time    `db:"revoked_at"`
	RevokeReason        *string       `db:"revoke_reason"`
	RevokeModeratorID   uuid.NullUUID `db:"revoke_moderator_id"`
	RevokeModeratorName *string       `db:"revoke_moderator_name"`
	RevokeKind          *RevokeKind   `db:"revoke_kind"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewPunishment builds an active punishment created now. Duration handling
// keeps the invariant that a permanent punishment has no expiry time.
func NewPunishment(t PunishmentType, playerID uuid.UUID, playerName string,
	moderatorID uuid.NullUUID, moderatorName, reason string, duration *int64) *Punishment {
	now := time.Now().UTC()
	p := &Punishment{
		Type:          t,
		PlayerID:      playerID,
		PlayerName:    playerName,
		ModeratorID:   moderatorID,
		ModeratorName: moderatorName,
		Reason:        reason,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.SetDuration(duration)
	return p
}

// SetDuration stores the duration and derives ExpiresAt from CreatedAt.
// A nil or non-positive duration marks the punishment permanent.
func (p *Punishment) SetDuration(duration *int64) {
	p.Duration = duration
	if duration != nil && *duration > 0 {
		exp := p.CreatedAt.Add(time.Duration(*duration) * time.Second)
		p.ExpiresAt = &exp
	} else {
		p.ExpiresAt = nil
	}
}

// IsPermanent reports whether the punishment never expires on its own.
func (p *Punishment) IsPermanent() bool {
	return p.Duration == nil || *p.Duration <= 0
}

// IsExpired reports whether a temporary punishment has run out at the given
// time. Permanent punishments never expire.
func (p *Punishment) IsExpired(now time.Time) bool {
	if p.IsPermanent() || p.ExpiresAt == nil {
		return false
	}
	return !now.Before(*p.ExpiresAt)
}

// Revoke marks the punishment inactive and fills the revoke fields together,
// so Active=false always implies a complete revoke record.
func (p *Punishment) Revoke(kind RevokeKind, reason string, moderatorID uuid.NullUUID, moderatorName string, at time.Time) {
	p.Active = false
	p.RevokedAt = &at
	p.RevokeKind = &kind
	p.RevokeReason = &reason
	p.RevokeModeratorID = moderatorID
	if moderatorName != "" {
		p.RevokeModeratorName = &moderatorName
	}
	p.UpdatedAt = at
}
