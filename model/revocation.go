package model

import (
	"time"

	"github.com/google/uuid"
)

// Revocation is a validated revoke request addressing a punishment by the
// external id the ban plugin assigned. It carries who lifted the punishment
// and why; the matching row is located later by the workflow.
type Revocation struct {
	Type          PunishmentType // optional, zero when the producer omitted it
	ExternalID    string
	Reason        string
	Kind          RevokeKind
	ModeratorID   uuid.NullUUID // invalid = lifted by the system
	ModeratorName string
	At            time.Time
}
