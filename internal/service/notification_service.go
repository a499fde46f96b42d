package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
	"github.com/msyamrijal/jadwal-website/pkg/webpush"
)

// NotificationService daily session reminders
type NotificationService interface {
	// RunDaily notifies every subscribed participant of today's sessions.
	// Each push settles on its own; failures are recorded, not retried.
	RunDaily(ctx context.Context, now time.Time) (*dto.RunSummary, error)
}

// PushPayload what the service worker renders
type PushPayload struct {
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  PushPayloadData `json:"data"`
}

// PushPayloadData click target
type PushPayloadData struct {
	URL        string `json:"url"`
	ScheduleID string `json:"schedule_id,omitempty"`
}

type notificationService struct {
	cfg     *config.Config
	repo    *repository.Repository
	sender  PushSender
	locker  Locker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewNotificationService creates a NotificationService. locker may be nil
// for single-instance deployments.
func NewNotificationService(
	cfg *config.Config,
	repo *repository.Repository,
	sender PushSender,
	locker Locker,
	m *metrics.Metrics,
	logger *zap.Logger,
) NotificationService {
	if m == nil {
		m = metrics.New()
	}
	return &notificationService{cfg: cfg, repo: repo, sender: sender, locker: locker, metrics: m, logger: logger}
}

// outgoing one message plus what it is about
type outgoing struct {
	msg        webpush.Message
	userID     string
	scheduleID string
}

func (s *notificationService) RunDaily(ctx context.Context, now time.Time) (*dto.RunSummary, error) {
	if s.sender == nil {
		return nil, ErrPushDisabled
	}

	loc := s.cfg.Schedule.Location()
	today := StartOfDay(now.In(loc))
	summary := &dto.RunSummary{RunID: uuid.NewString(), Date: today.Format("2006-01-02")}

	// one run per day across instances
	if s.locker != nil {
		lockName := "notify:" + summary.Date
		ok, err := s.locker.AcquireLock(ctx, lockName, s.cfg.Push.LockTTL)
		if err != nil {
			s.logger.Warn("notification lock unavailable, running anyway", zap.Error(err))
		} else if !ok {
			s.logger.Info("notification run already taken by another instance", zap.String("date", summary.Date))
			summary.Skipped = true
			return summary, nil
		}
	}

	// 1. today's sessions
	schedules, err := s.repo.Schedule.ListBetween(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error("failed to load today's schedules", zap.Error(err))
		return nil, err
	}
	summary.Schedules = len(schedules)
	if len(schedules) == 0 {
		s.logger.Info("no schedules today", zap.String("date", summary.Date))
		return summary, nil
	}

	// 2. build per-session messages
	var out []outgoing
	recipients := make(map[string]struct{})
	for i := range schedules {
		sched := &schedules[i]
		names := model.SearchableNames(sched.Names())
		if len(names) == 0 {
			continue
		}

		users, err := s.repo.User.ListByDisplayNames(ctx, names)
		if err != nil {
			s.logger.Error("failed to match participants", zap.String("schedule_id", sched.ScheduleID), zap.Error(err))
			return nil, err
		}
		if len(users) == 0 {
			continue
		}

		userIDs := make([]string, 0, len(users))
		for _, u := range users {
			userIDs = append(userIDs, u.UserID)
		}
		subs, err := s.repo.Push.ListSubscriptionsByUsers(ctx, userIDs)
		if err != nil {
			s.logger.Error("failed to load subscriptions", zap.Error(err))
			return nil, err
		}
		if len(subs) == 0 {
			continue
		}

		payload, err := json.Marshal(PushPayload{
			Title: fmt.Sprintf("Jadwal Anda Hari Ini (%s WIB)", sched.Date.In(loc).Format("15:04")),
			Body:  "Mata Kuliah: " + sched.Subject,
			Data:  PushPayloadData{URL: s.cfg.Push.DashboardURL, ScheduleID: sched.ScheduleID},
		})
		if err != nil {
			return nil, err
		}

		for _, sub := range subs {
			recipients[sub.UserID] = struct{}{}
			out = append(out, outgoing{
				msg: webpush.Message{
					Target: webpush.Target{
						ID:       sub.ID,
						Endpoint: sub.Endpoint,
						P256dh:   sub.P256dh,
						Auth:     sub.Auth,
					},
					Payload: payload,
				},
				userID:     sub.UserID,
				scheduleID: sched.ScheduleID,
			})
		}
	}
	summary.Recipients = len(recipients)
	summary.Messages = len(out)
	if len(out) == 0 {
		return summary, nil
	}

	// 3. settle all
	msgs := make([]webpush.Message, len(out))
	for i := range out {
		msgs[i] = out[i].msg
	}
	results := s.sender.SendAll(ctx, msgs)

	// 4. record outcomes, prune dead subscriptions
	deliveries := make([]model.PushDelivery, 0, len(results))
	var gone []string
	for i, res := range results {
		d := model.PushDelivery{
			RunID:          summary.RunID,
			SubscriptionID: res.Target.ID,
			UserID:         out[i].userID,
			ScheduleID:     out[i].scheduleID,
			Payload:        out[i].msg.Payload,
		}
		switch {
		case res.OK():
			d.Status = model.DeliverySent
			summary.Sent++
		case res.Gone():
			d.Status = model.DeliveryGone
			d.Error = res.Err.Error()
			gone = append(gone, res.Target.ID)
			summary.Failed++
		default:
			d.Status = model.DeliveryFailed
			d.Error = res.Err.Error()
			summary.Failed++
		}
		s.metrics.PushDeliveries.WithLabelValues(d.Status).Inc()
		deliveries = append(deliveries, d)
	}

	if err := s.repo.Push.CreateDeliveries(ctx, deliveries); err != nil {
		s.logger.Error("failed to record push deliveries", zap.String("run_id", summary.RunID), zap.Error(err))
	}
	if len(gone) > 0 {
		if err := s.repo.Push.DeleteSubscriptionsByID(ctx, dedupe(gone)); err != nil {
			s.logger.Error("failed to prune push subscriptions", zap.Error(err))
		} else {
			summary.Pruned = len(dedupe(gone))
		}
	}

	s.logger.Info("daily notifications processed",
		zap.String("run_id", summary.RunID),
		zap.Int("schedules", summary.Schedules),
		zap.Int("messages", summary.Messages),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("pruned", summary.Pruned),
	)
	return summary, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
