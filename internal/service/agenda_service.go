package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/jwt"
)

var (
	ErrInvalidFeedToken = errors.New("tautan kalender tidak valid atau kedaluwarsa")
	ErrNoDisplayName    = errors.New("nama tampilan belum diatur")
)

// AgendaService participant agendas and the calendar feed
type AgendaService interface {
	MyAgenda(ctx context.Context, userID string) (*dto.MyAgendaResponse, error)
	Summary(ctx context.Context) (*dto.AgendaSummaryResponse, error)
	FeedLink(ctx context.Context, userID string) (*dto.FeedResponse, error)
	CalendarFeed(ctx context.Context, token string) ([]byte, error)
}

type agendaService struct {
	cfg    *config.Config
	repo   *repository.Repository
	jwtMgr *jwt.Manager
	logger *zap.Logger
	now    func() time.Time
}

// NewAgendaService creates an AgendaService
func NewAgendaService(cfg *config.Config, repo *repository.Repository, jwtMgr *jwt.Manager, logger *zap.Logger) AgendaService {
	return &agendaService{cfg: cfg, repo: repo, jwtMgr: jwtMgr, logger: logger, now: time.Now}
}

// agendas loads every session from today on and groups it by participant
func (s *agendaService) agendas(ctx context.Context) (map[string][]AgendaEntry, error) {
	now := s.now().In(s.cfg.Schedule.Location())
	records, err := s.repo.Schedule.ListFrom(ctx, StartOfDay(now))
	if err != nil {
		s.logger.Error("failed to load upcoming schedules", zap.Error(err))
		return nil, err
	}
	return BuildAgendas(records, now), nil
}

func (s *agendaService) MyAgenda(ctx context.Context, userID string) (*dto.MyAgendaResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user.DisplayName == "" {
		return nil, ErrNoDisplayName
	}

	agendas, err := s.agendas(ctx)
	if err != nil {
		return nil, err
	}
	entries := agendas[user.DisplayName]
	return &dto.MyAgendaResponse{
		DisplayName:       user.DisplayName,
		RemainingSessions: len(entries),
		Entries:           toAgendaEntries(entries),
	}, nil
}

func (s *agendaService) Summary(ctx context.Context) (*dto.AgendaSummaryResponse, error) {
	agendas, err := s.agendas(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(agendas))
	for name := range agendas {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := &dto.AgendaSummaryResponse{Participants: make([]dto.ParticipantAgenda, 0, len(names))}
	for _, name := range names {
		resp.Participants = append(resp.Participants, dto.ParticipantAgenda{
			Name:    name,
			Entries: toAgendaEntries(agendas[name]),
		})
	}
	return resp, nil
}

// ── Calendar feed ──

func (s *agendaService) FeedLink(ctx context.Context, userID string) (*dto.FeedResponse, error) {
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	token, err := s.jwtMgr.GenerateFeedToken(userID)
	if err != nil {
		s.logger.Error("failed to sign feed token", zap.Error(err))
		return nil, err
	}
	url := fmt.Sprintf("%s/api/v1/feeds/%s/calendar.ics", strings.TrimRight(s.cfg.Server.BaseURL, "/"), token)

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		s.logger.Error("failed to render feed QR code", zap.Error(err))
		return nil, err
	}

	return &dto.FeedResponse{
		URL:       url,
		QRCodePNG: base64.StdEncoding.EncodeToString(png),
		ExpiresAt: s.now().Add(s.cfg.Auth.FeedTokenTTL).Format(time.RFC3339),
	}, nil
}

func (s *agendaService) CalendarFeed(ctx context.Context, token string) ([]byte, error) {
	claims, err := s.jwtMgr.ParseTokenOfType(token, jwt.TypeFeed)
	if err != nil {
		return nil, ErrInvalidFeedToken
	}
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidFeedToken
		}
		return nil, err
	}

	agendas, err := s.agendas(ctx)
	if err != nil {
		return nil, err
	}
	cal := buildCalendar(user.DisplayName, agendas[user.DisplayName], s.cfg.Schedule.SessionDuration, s.now())
	return []byte(cal.Serialize()), nil
}

// buildCalendar renders one participant's agenda as iCalendar with a
// one-hour reminder per session.
func buildCalendar(name string, entries []AgendaEntry, duration time.Duration, stamp time.Time) *ics.Calendar {
	if duration <= 0 {
		duration = 2 * time.Hour
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Jadwaluna//Agenda//ID")
	cal.SetXWRCalName("Jadwaluna - " + name)
	cal.SetXWRTimezone("Asia/Jakarta")

	for _, e := range entries {
		ev := cal.AddEvent(e.ScheduleID + "@jadwaluna")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(e.Date)
		ev.SetEndAt(e.Date.Add(duration))
		ev.SetSummary(e.Subject)
		ev.SetLocation(e.Institution)

		desc := e.DiscussionTopic
		if len(e.OtherParticipants) > 0 {
			if desc != "" {
				desc += "\n"
			}
			desc += "Peserta lain: " + strings.Join(e.OtherParticipants, ", ")
		}
		if desc != "" {
			ev.SetDescription(desc)
		}

		alarm := ev.AddAlarm()
		alarm.SetAction(ics.ActionDisplay)
		alarm.SetTrigger("-PT1H")
		alarm.SetProperty(ics.ComponentPropertyDescription, e.Subject)
	}
	return cal
}

func toAgendaEntries(entries []AgendaEntry) []dto.AgendaEntry {
	out := make([]dto.AgendaEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AgendaEntry{
			ScheduleID:        e.ScheduleID,
			Subject:           e.Subject,
			Date:              e.Date.Format(time.RFC3339),
			Institution:       e.Institution,
			DiscussionTopic:   e.DiscussionTopic,
			OtherParticipants: e.OtherParticipants,
		})
	}
	return out
}
