// Package audit keeps an append-only trail of account and session lifecycle
// events: invites issued and accepted, password resets, revocations, logouts.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Actions recorded in the trail.
const (
	ActionInviteCreated     = "invite_created"
	ActionInviteAccepted    = "invite_accepted"
	ActionResetRequested    = "password_reset_requested"
	ActionResetConfirmed    = "password_reset_confirmed"
	ActionSessionRevoked    = "session_revoked"
	ActionSessionRevokeRest = "session_revoke_other"
	ActionLogout            = "logout"
)

type Entry struct {
	RestaurantID int            `json:"restaurantId"`
	ActorEmail   string         `json:"actorEmail"`
	Action       string         `json:"action"`
	Payload      map[string]any `json:"payload,omitempty"`
	IP           string         `json:"ip,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Repo persists audit entries. Entries are append-only and never mutated.
type Repo interface {
	Append(ctx context.Context, entry Entry) error
	ListByRestaurant(ctx context.Context, restaurantID int, limit int) ([]Entry, error)
}

// Recorder writes entries to the repo and mirrors them to the log. A failed
// append is logged but never propagated; audit must not fail the operation
// it describes.
type Recorder struct {
	repo    Repo
	log     zerolog.Logger
	nowTime func() time.Time
}

func NewRecorder(repo Repo, log zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, log: log, nowTime: time.Now}
}

func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.nowTime()
	}

	r.log.Info().
		Int("restaurant_id", entry.RestaurantID).
		Str("actor", entry.ActorEmail).
		Str("action", entry.Action).
		Fields(entry.Payload).
		Msg("audit")

	if r.repo == nil {
		return
	}
	if err := r.repo.Append(ctx, entry); err != nil {
		r.log.Err(err).Str("action", entry.Action).Msg("failed to append audit entry")
	}
}
