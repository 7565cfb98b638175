package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
)

// SMTPSender delivers messages over plain SMTP with STARTTLS when the server
// offers it. The context deadline bounds the whole exchange.
type SMTPSender struct {
	addr     string
	username string
	password string
}

func NewSMTPSender(addr, username, password string) *SMTPSender {
	return &SMTPSender{
		addr:     addr,
		username: username,
		password: password,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	host, _, err := net.SplitHostPort(s.addr)
	if err != nil {
		host = s.addr
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return classify(fmt.Errorf("smtp handshake: %w", err))
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return classify(fmt.Errorf("smtp starttls: %w", err))
		}
	}

	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, host)
		if err := c.Auth(auth); err != nil {
			return classify(fmt.Errorf("smtp auth: %w", err))
		}
	}

	if err := c.Mail(msg.From); err != nil {
		return classify(fmt.Errorf("smtp mail from: %w", err))
	}
	if err := c.Rcpt(msg.To); err != nil {
		return classify(fmt.Errorf("smtp rcpt to: %w", err))
	}

	w, err := c.Data()
	if err != nil {
		return classify(fmt.Errorf("smtp data: %w", err))
	}
	if _, err := w.Write(formatMessage(msg)); err != nil {
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return classify(fmt.Errorf("smtp close body: %w", err))
	}

	return acceptedQuit(c.Quit())
}

// acceptedQuit swallows a QUIT failure. Once the server has acknowledged the
// DATA terminator the message is accepted; surfacing a later error would make
// the queue redeliver an already-delivered message.
func acceptedQuit(err error) error {
	if err != nil {
		slog.Warn("smtp quit failed after accepted delivery", "error", err)
	}
	return nil
}

func formatMessage(msg Message) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(msg.From))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(msg.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(msg.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}

// headerValue strips CR and LF so caller-supplied content cannot splice
// additional headers into the message. Validation rejects such input at
// admission; this keeps the builder safe on its own.
func headerValue(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

// classify marks 5xx SMTP replies as permanent; the server has definitively
// rejected the message.
func classify(err error) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) && tpErr.Code >= 500 {
		return Permanent(err)
	}
	return err
}
