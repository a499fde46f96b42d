package handler

import (
	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/service"
)

// Handler aggregates every HTTP handler
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Schedule     *ScheduleHandler
	Import       *ImportHandler
	Export       *ExportHandler
	Agenda       *AgendaHandler
	Push         *PushHandler
	Notification *NotificationHandler
	Health       *HealthHandler
	Realtime     *RealtimeHandler
}

// Deps collaborators outside the service layer. Nil fields disable the
// matching endpoint or health check.
type Deps struct {
	DB    Pinger
	Redis Pinger
	Hub   WSServer
}

// NewHandler creates the Handler aggregate
func NewHandler(cfg *config.Config, svc *service.Service, deps Deps) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(svc.Auth, cfg),
		User:         NewUserHandler(svc.User),
		Schedule:     NewScheduleHandler(svc.Schedule, cfg),
		Import:       NewImportHandler(svc.Import),
		Export:       NewExportHandler(svc.Export),
		Agenda:       NewAgendaHandler(svc.Agenda),
		Push:         NewPushHandler(svc.Push),
		Notification: NewNotificationHandler(svc.Notification),
		Health:       NewHealthHandler(deps.DB, deps.Redis),
		Realtime:     NewRealtimeHandler(deps.Hub),
	}
}
