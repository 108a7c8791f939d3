package notify

import (
	"context"

	"github.com/rs/zerolog/log"
)

var _ Mailer = (*NopMailer)(nil)

// NopMailer drops mail and logs the subject. Used when SMTP is not
// configured, and in tests.
type NopMailer struct{}

func (NopMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Debug().Str("to", to).Str("subject", subject).Msg("smtp not configured, dropping email")
	return nil
}
