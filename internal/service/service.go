package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/jwt"
	"github.com/msyamrijal/jadwal-website/pkg/mail"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
	"github.com/msyamrijal/jadwal-website/pkg/webpush"
)

// Service aggregates every service
type Service struct {
	Auth         AuthService
	User         UserService
	Schedule     ScheduleService
	Agenda       AgendaService
	Import       ImportService
	Export       ExportService
	Push         PushService
	Notification NotificationService
}

// TokenStore revoked token IDs (Redis)
type TokenStore interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Locker cross-instance job lock (Redis)
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error
}

// PushSender Web Push delivery
type PushSender interface {
	PublicKey() string
	SendAll(ctx context.Context, msgs []webpush.Message) []webpush.Result
}

// EventPublisher notifies connected clients that data changed
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// Event types
const (
	EventSchedulesChanged = "schedules.changed"
)

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) {}

// Infra optional collaborators. Nil fields fall back to no-op or
// log-only implementations.
type Infra struct {
	Tokens     TokenStore
	Locker     Locker
	Mailer     mail.Sender
	Push       PushSender
	Events     EventPublisher
	Metrics    *metrics.Metrics
	HTTPClient *http.Client
}

func (in *Infra) withDefaults(cfg *config.Config, logger *zap.Logger) *Infra {
	out := Infra{}
	if in != nil {
		out = *in
	}
	if out.Mailer == nil {
		out.Mailer = mail.NewSender(&cfg.Mail, logger)
	}
	if out.Events == nil {
		out.Events = noopPublisher{}
	}
	if out.Metrics == nil {
		out.Metrics = metrics.New()
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: cfg.Import.FetchTimeout}
	}
	return &out
}

// NewService wires every service
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	infra *Infra,
	logger *zap.Logger,
) *Service {
	in := infra.withDefaults(cfg, logger)
	schedule := NewScheduleService(cfg, repo, in.Events, in.Metrics, logger)
	return &Service{
		Auth:         NewAuthService(cfg, repo, jwtMgr, in.Tokens, in.Mailer, logger),
		User:         NewUserService(repo, logger),
		Schedule:     schedule,
		Agenda:       NewAgendaService(cfg, repo, jwtMgr, logger),
		Import:       NewImportService(cfg, repo, in.HTTPClient, in.Events, in.Metrics, logger),
		Export:       NewExportService(cfg, repo, logger),
		Push:         NewPushService(repo, in.Push, logger),
		Notification: NewNotificationService(cfg, repo, in.Push, in.Locker, in.Metrics, logger),
	}
}
