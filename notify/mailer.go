// Package notify delivers account lifecycle email: invite links, password
// reset links, and confirmation notices. Delivery is best-effort; a failed
// send never fails the request that triggered it.
package notify

import "context"

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
