// Package smtp delivers invitations over SMTP using net/smtp.
//
// The invite body is sent as a text/calendar MIME part with the iCalendar
// method as a content-type parameter, which is what most calendaring clients
// key on to surface the invitation inline.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/smtp"
	"strings"

	"github.com/rbaliyan/calendar/store"
	"github.com/rbaliyan/calendar/transport"
)

// Compile-time check
var _ transport.Transport = (*Transport)(nil)

// Transport delivers invites through an SMTP relay.
type Transport struct {
	addr string
	from store.Mailbox
	auth smtp.Auth
	opts *options
}

// New creates an SMTP transport. addr is the relay in host:port form and from
// is the sender mailbox used for the envelope and the From header.
func New(addr string, from store.Mailbox, opts ...Option) *Transport {
	return &Transport{
		addr: addr,
		from: from,
		opts: newOptions(opts...),
	}
}

// WithAuth returns a copy of the transport that authenticates with auth.
func (t *Transport) WithAuth(auth smtp.Auth) *Transport {
	clone := *t
	clone.auth = auth
	return &clone
}

// Deliver sends the invite to the recipient through the relay.
//
// net/smtp has no context support, so cancellation is checked up front and
// the dial itself runs to completion. Callers bound delivery time with the
// dispatcher's per-recipient timeout.
func (t *Transport) Deliver(ctx context.Context, to store.Mailbox, invite transport.Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := t.buildMessage(to, invite)
	if err := smtp.SendMail(t.addr, t.auth, t.from.Email, []string{to.Email}, msg); err != nil {
		return fmt.Errorf("%w: %s: %w", transport.ErrDeliveryFailed, to.Key(), err)
	}

	t.opts.logger.Debug("delivered invite",
		slog.String("uid", invite.UID),
		slog.Int64("sequence", invite.Sequence),
		slog.String("recipient", to.Key()))
	return nil
}

// buildMessage assembles the RFC 5322 message with a text/calendar body.
func (t *Transport) buildMessage(to store.Mailbox, invite transport.Invite) []byte {
	method := strings.ToUpper(string(invite.Method))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", formatAddress(t.from))
	fmt.Fprintf(&b, "To: %s\r\n", formatAddress(to))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", invite.Summary))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: text/calendar; method=%s; charset=utf-8\r\n", method)
	b.WriteString("\r\n")
	b.Write(invite.Body)
	return []byte(b.String())
}

// formatAddress renders a mailbox as a display-name address when a name is set.
func formatAddress(m store.Mailbox) string {
	if m.Name == "" {
		return m.Email
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.Name), m.Email)
}
