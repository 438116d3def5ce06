package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/potooio/herald/internal/types"
)

// TLS modes for SMTPOptions.TLSMode.
const (
	TLSModeStartTLS = "starttls"
	TLSModeImplicit = "implicit"
	TLSModeNone     = "none"
)

// SMTPOptions configures an SMTPTransport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the envelope and header sender. Defaults to Username.
	From     string
	FromName string
	TLSMode  string
	Timeout  time.Duration
}

// DefaultSMTPOptions returns sensible defaults. Host and credentials must still be set.
func DefaultSMTPOptions() SMTPOptions {
	return SMTPOptions{
		Port:    587,
		TLSMode: TLSModeStartTLS,
		Timeout: 30 * time.Second,
	}
}

// SMTPTransport sends email over SMTP. One connection is opened per send.
type SMTPTransport struct {
	logger *zap.Logger
	opts   SMTPOptions
	from   mail.Address
}

// NewSMTPTransport validates options and creates an SMTPTransport.
func NewSMTPTransport(logger *zap.Logger, opts SMTPOptions) (*SMTPTransport, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid smtp port %d", opts.Port)
	}
	switch opts.TLSMode {
	case "":
		opts.TLSMode = TLSModeStartTLS
	case TLSModeStartTLS, TLSModeImplicit, TLSModeNone:
	default:
		return nil, fmt.Errorf("unknown smtp tls mode %q", opts.TLSMode)
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	from, err := mail.ParseAddress(opts.From)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp from address %q: %w", opts.From, err)
	}
	if opts.FromName != "" {
		from.Name = opts.FromName
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultSMTPOptions().Timeout
	}
	return &SMTPTransport{
		logger: logger.Named("smtp-transport"),
		opts:   opts,
		from:   *from,
	}, nil
}

// Name implements types.Transport.
func (st *SMTPTransport) Name() string { return "smtp" }

// Send implements types.Transport.
func (st *SMTPTransport) Send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	start := time.Now()
	receipt, err := st.send(ctx, email)
	observe(st.Name(), start, err)
	return receipt, err
}

func (st *SMTPTransport) send(ctx context.Context, email types.Email) (types.SendReceipt, error) {
	if err := validateEmail(email); err != nil {
		return types.SendReceipt{}, err
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), st.opts.Host)
	msg, err := buildMessage(st.from, messageID, email, time.Now())
	if err != nil {
		return types.SendReceipt{}, err
	}

	client, err := st.dial(ctx)
	if err != nil {
		return types.SendReceipt{}, err
	}
	defer client.Close()

	if st.opts.Username != "" {
		auth := smtp.PlainAuth("", st.opts.Username, st.opts.Password, st.opts.Host)
		if err := client.Auth(auth); err != nil {
			return types.SendReceipt{}, fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(st.from.Address); err != nil {
		return types.SendReceipt{}, fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, to := range email.To {
		if err := client.Rcpt(to); err != nil {
			return types.SendReceipt{}, fmt.Errorf("smtp RCPT TO %s: %w", to, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return types.SendReceipt{}, fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return types.SendReceipt{}, fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return types.SendReceipt{}, fmt.Errorf("smtp close data: %w", err)
	}
	if err := client.Quit(); err != nil {
		st.logger.Debug("SMTP quit failed after successful send", zap.Error(err))
	}
	return types.SendReceipt{MessageID: messageID}, nil
}

// dial connects and negotiates TLS according to the configured mode.
func (st *SMTPTransport) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(st.opts.Host, strconv.Itoa(st.opts.Port))
	deadline := time.Now().Add(st.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	dialer := &net.Dialer{Deadline: deadline}
	tlsConfig := &tls.Config{ServerName: st.opts.Host, MinVersion: tls.VersionTLS12}

	var conn net.Conn
	var err error
	if st.opts.TLSMode == TLSModeImplicit {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, st.opts.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	if st.opts.TLSMode == TLSModeStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			client.Close()
			return nil, permanent("smtp server %s does not support STARTTLS", addr)
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("smtp starttls: %w", err)
		}
	}
	return client, nil
}

// buildMessage renders a multipart/alternative MIME message with text and HTML parts.
func buildMessage(from mail.Address, messageID string, email types.Email, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := func(k, v string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, v)
	}
	header("From", from.String())
	header("To", strings.Join(email.To, ", "))
	header("Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", mw.Boundary()))
	buf.WriteString("\r\n")

	parts := []struct {
		contentType string
		body        string
	}{
		{"text/plain; charset=utf-8", email.Text},
		{"text/html; charset=utf-8", email.HTML},
	}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {p.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, fmt.Errorf("create mime part: %w", err)
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(p.body)); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
		if err := qp.Close(); err != nil {
			return nil, fmt.Errorf("encode mime part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mime writer: %w", err)
	}
	return buf.Bytes(), nil
}
