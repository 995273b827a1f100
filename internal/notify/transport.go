package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Transport delivers one composed message.
type Transport interface {
	Send(ctx context.Context, m Message) error
}

// SESAPI is the subset of the SES v2 client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends the encoded MIME message as raw content, which keeps attachments intact.
type SESTransport struct {
	Client SESAPI
}

func NewSESTransport(cfg aws.Config) *SESTransport {
	return &SESTransport{Client: sesv2.NewFromConfig(cfg)}
}

func (t *SESTransport) Send(ctx context.Context, m Message) error {
	msg, err := buildMsg(m)
	if err != nil {
		return err
	}
	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	_, err = t.Client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(m.From),
		Destination:      &types.Destination{ToAddresses: m.To},
		Content:          &types.EmailContent{Raw: &types.RawMessage{Data: raw.Bytes()}},
	})
	if err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// RequireTLS refuses to deliver over a connection without STARTTLS.
	RequireTLS bool
}

type SMTPTransport struct {
	Client *mail.Client
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.RequireTLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return &SMTPTransport{Client: c}, nil
}

func (t *SMTPTransport) Send(ctx context.Context, m Message) error {
	msg, err := buildMsg(m)
	if err != nil {
		return err
	}
	if err := t.Client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogTransport only logs what would have been sent. Used in development.
type LogTransport struct {
	Logger *zap.Logger
}

func (t *LogTransport) Send(ctx context.Context, m Message) error {
	if _, err := buildMsg(m); err != nil {
		return err
	}
	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Filename)
	}
	logger := t.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("email (log transport)",
		zap.Strings("to", m.To),
		zap.String("from", m.From),
		zap.String("subject", m.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}
