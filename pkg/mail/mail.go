package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Message is one outgoing email
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers transactional mail
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns a SendGrid sender when an API key is configured,
// otherwise a sender that only logs.
func NewSender(cfg *config.MailConfig, logger *zap.Logger) Sender {
	if cfg.SendGridAPIKey == "" {
		logger.Warn("mail.sendgrid_api_key not set, outgoing mail is logged only")
		return &logSender{logger: logger}
	}
	return &sendgridSender{
		key:        cfg.SendGridAPIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		subjPrefix: "[" + cfg.FromName + "] ",
		logger:     logger,
	}
}

// ── SendGrid ──

type sendgridSender struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

func (s *sendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToEmail))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *sendgridSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		s.logger.Error("sending email failed", zap.String("to", msg.ToEmail), zap.Error(err))
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		s.logger.Error("sending email rejected",
			zap.String("to", msg.ToEmail),
			zap.Int("status", res.StatusCode),
			zap.String("body", res.Body),
		)
		return fmt.Errorf("sendgrid: status %d", res.StatusCode)
	}
	return nil
}

// ── Log only ──

type logSender struct {
	logger *zap.Logger
}

func (s *logSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email (not sent)",
		zap.String("to", msg.ToEmail),
		zap.String("subject", msg.Subject),
		zap.String("text", msg.Text),
	)
	return nil
}
