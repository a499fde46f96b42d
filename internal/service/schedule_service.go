package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	pkgerrors "github.com/msyamrijal/jadwal-website/pkg/errors"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
)

// ── Schedule errors ──

var (
	ErrScheduleNotFound       = errors.New("jadwal tidak ditemukan")
	ErrScheduleForbidden      = errors.New("anda bukan peserta jadwal ini")
	ErrSubjectRequired        = errors.New("mata pelajaran wajib diisi")
	ErrDateRequired           = errors.New("tanggal wajib diisi")
	ErrInvalidParticipantSlot = errors.New("nomor peserta harus 1 sampai 12")
	ErrTooManyParticipants    = errors.New("maksimal 12 peserta")
	ErrNothingToUpdate        = errors.New("tidak ada perubahan")
	ErrFieldNotReplaceable    = errors.New("kolom tidak dapat diganti massal")
	ErrEmptySearch            = errors.New("kolom dan teks yang dicari tidak boleh kosong")
	ErrNoMatch                = errors.New("tidak ada data yang cocok dengan teks yang dicari")
	ErrUnknownRowAction       = errors.New("aksi tidak dikenal")
)

// ConfirmationRequiredError a write that touches more than the caller
// asked for; repeat the request with confirm=true to apply it.
type ConfirmationRequiredError struct {
	Count int

	// cascade
	Subject     string
	Institution string

	// bulk replace
	Field   model.ScheduleField
	Find    string
	Replace string
}

func (e *ConfirmationRequiredError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("confirmation required: replace %q with %q in %s on %d schedules", e.Find, e.Replace, e.Field, e.Count)
	}
	return fmt.Sprintf("confirmation required: shift %d schedules of %s - %s", e.Count, e.Subject, e.Institution)
}

// Prompt question shown to the user
func (e *ConfirmationRequiredError) Prompt() string {
	if e.Field != "" {
		return fmt.Sprintf("Anda akan mengubah \"%s\" menjadi \"%s\" di kolom \"%s\" pada %d jadwal. Lanjutkan?",
			e.Find, e.Replace, e.Field.Label(), e.Count)
	}
	return fmt.Sprintf("Anda akan mengubah tanggal untuk %d jadwal (%s - %s) secara berurutan. Lanjutkan?",
		e.Count, e.Subject, e.Institution)
}

// Caller the authenticated user behind a request
type Caller struct {
	UserID string
	Role   string
}

// IsAdmin reports the admin role
func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// ScheduleService schedule use cases
type ScheduleService interface {
	Create(ctx context.Context, req *dto.CreateScheduleRequest, caller Caller) (*dto.ScheduleResponse, error)
	Get(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	List(ctx context.Context, filter repository.ScheduleFilter) ([]dto.ScheduleResponse, error)
	SearchByParticipant(ctx context.Context, name string) ([]dto.ScheduleResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, caller Caller) (*dto.UpdateScheduleResponse, error)
	Delete(ctx context.Context, id string) error
	BulkReplace(ctx context.Context, req *dto.BulkReplaceRequest, caller Caller) (*dto.BulkReplaceResponse, error)
	Dispatch(ctx context.Context, id string, req *dto.RowActionRequest, caller Caller) (*dto.RowActionResponse, error)
}

type scheduleService struct {
	cfg     *config.Config
	repo    *repository.Repository
	events  EventPublisher
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewScheduleService creates a ScheduleService
func NewScheduleService(
	cfg *config.Config,
	repo *repository.Repository,
	events EventPublisher,
	m *metrics.Metrics,
	logger *zap.Logger,
) ScheduleService {
	if events == nil {
		events = noopPublisher{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &scheduleService{cfg: cfg, repo: repo, events: events, metrics: m, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// Create / Read
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) Create(ctx context.Context, req *dto.CreateScheduleRequest, caller Caller) (*dto.ScheduleResponse, error) {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, ErrSubjectRequired
	}
	if req.Date == nil || req.Date.IsZero() {
		return nil, ErrDateRequired
	}
	if len(req.Participants) > model.MaxParticipants {
		return nil, ErrTooManyParticipants
	}

	date := *req.Date
	sched := &model.Schedule{
		Subject:         subject,
		Institution:     strings.TrimSpace(req.Institution),
		DiscussionTopic: strings.TrimSpace(req.DiscussionTopic),
		Date:            &date,
	}
	for i, name := range req.Participants {
		sched.SetParticipant(i+1, strings.TrimSpace(name))
	}
	sched.RefreshSearchableParticipants()
	sched.CreatedBy = &caller.UserID
	sched.UpdatedBy = &caller.UserID

	if err := s.repo.Schedule.Create(ctx, sched); err != nil {
		s.logger.Error("failed to create schedule", zap.Error(err))
		return nil, err
	}

	s.events.Publish(EventSchedulesChanged, map[string]interface{}{"action": "create", "ids": []string{sched.ScheduleID}})
	resp := toScheduleResponse(sched)
	return &resp, nil
}

func (s *scheduleService) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	sched, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toScheduleResponse(sched)
	return &resp, nil
}

func (s *scheduleService) List(ctx context.Context, filter repository.ScheduleFilter) ([]dto.ScheduleResponse, error) {
	if filter.Timezone == "" {
		filter.Timezone = s.cfg.Schedule.Timezone
	}
	rows, err := s.repo.Schedule.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list schedules", zap.Error(err))
		return nil, err
	}
	return s.datedResponses(rows), nil
}

func (s *scheduleService) SearchByParticipant(ctx context.Context, name string) ([]dto.ScheduleResponse, error) {
	key := model.NormalizeName(name)
	if key == "" {
		return []dto.ScheduleResponse{}, nil
	}
	rows, err := s.repo.Schedule.ListByParticipant(ctx, key)
	if err != nil {
		s.logger.Error("failed to search schedules by participant", zap.Error(err))
		return nil, err
	}
	return s.datedResponses(rows), nil
}

// datedResponses converts rows, skipping (and logging) rows without a date
func (s *scheduleService) datedResponses(rows []model.Schedule) []dto.ScheduleResponse {
	out := make([]dto.ScheduleResponse, 0, len(rows))
	for i := range rows {
		if rows[i].Date == nil {
			s.logger.Warn("skipping schedule without a valid date", zap.String("schedule_id", rows[i].ScheduleID))
			continue
		}
		out = append(out, toScheduleResponse(&rows[i]))
	}
	return out
}

// ═══════════════════════════════════════════════════════════
// Update (with cascading date shift)
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) Update(ctx context.Context, id string, req *dto.UpdateScheduleRequest, caller Caller) (*dto.UpdateScheduleResponse, error) {
	// 1. validate before touching the store
	if err := validateUpdate(req); err != nil {
		return nil, err
	}

	// 2. load
	existing, err := s.getSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		if err := s.checkParticipant(ctx, existing, caller); err != nil {
			return nil, err
		}
	}

	// 3. merged view and column updates
	merged := *existing
	updates := applyUpdate(&merged, req)
	updates["updated_by"] = caller.UserID
	merged.UpdatedBy = &caller.UserID

	// 4. cascade plan
	var plan CascadePlan
	if req.Cascade && req.Date != nil && existing.Date != nil {
		loc := s.cfg.Schedule.Location()
		if CalendarDayDiff(*existing.Date, *req.Date, loc) != 0 {
			series, err := s.repo.Schedule.ListBySeries(ctx, existing.Subject, existing.Institution)
			if err != nil {
				s.logger.Error("failed to load schedule series", zap.Error(err))
				return nil, err
			}
			plan, err = PlanCascade(*existing, *req.Date, series, loc)
			if err != nil {
				s.logger.Error("cascade origin missing", zap.String("schedule_id", id))
				return nil, err
			}
			if len(plan.Shifts) > 0 && !req.Confirm {
				return nil, &ConfirmationRequiredError{
					Count:       len(plan.Shifts) + 1,
					Subject:     existing.Subject,
					Institution: existing.Institution,
				}
			}
		}
	}

	// 5. write: primary edit and shifts commit together
	if len(plan.Shifts) > 0 {
		err = s.repo.Schedule.UpdateWithShifts(ctx, id, updates, plan.Shifts)
	} else {
		err = s.repo.Schedule.Update(ctx, id, updates)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("failed to update schedule", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}

	ids := []string{id}
	for _, sh := range plan.Shifts {
		ids = append(ids, sh.ScheduleID)
	}
	if len(plan.Shifts) > 0 {
		s.metrics.CascadeShifts.Add(float64(len(plan.Shifts)))
		s.logger.Info("cascade applied",
			zap.String("schedule_id", id),
			zap.Int("day_diff", plan.DayDiff),
			zap.Int("shifted", len(plan.Shifts)),
		)
	}
	s.events.Publish(EventSchedulesChanged, map[string]interface{}{"action": "update", "ids": ids})

	return &dto.UpdateScheduleResponse{
		Schedule: toScheduleResponse(&merged),
		Shifted:  len(plan.Shifts),
		DayDiff:  plan.DayDiff,
	}, nil
}

func validateUpdate(req *dto.UpdateScheduleRequest) error {
	if req.Subject == nil && req.Institution == nil && req.DiscussionTopic == nil &&
		req.Date == nil && len(req.Participants) == 0 {
		return ErrNothingToUpdate
	}
	if req.Subject != nil && strings.TrimSpace(*req.Subject) == "" {
		return ErrSubjectRequired
	}
	if req.Date != nil && req.Date.IsZero() {
		return ErrDateRequired
	}
	for slot := range req.Participants {
		if slot < 1 || slot > model.MaxParticipants {
			return ErrInvalidParticipantSlot
		}
	}
	return nil
}

// applyUpdate writes req into sched and returns the matching column map.
// Touching any participant slot rewrites searchable_participants from the
// full merged slot set.
func applyUpdate(sched *model.Schedule, req *dto.UpdateScheduleRequest) map[string]interface{} {
	updates := make(map[string]interface{})
	if req.Subject != nil {
		sched.Subject = strings.TrimSpace(*req.Subject)
		updates[model.FieldSubject.Column()] = sched.Subject
	}
	if req.Institution != nil {
		sched.Institution = strings.TrimSpace(*req.Institution)
		updates[model.FieldInstitution.Column()] = sched.Institution
	}
	if req.DiscussionTopic != nil {
		sched.DiscussionTopic = strings.TrimSpace(*req.DiscussionTopic)
		updates[model.FieldDiscussionTopic.Column()] = sched.DiscussionTopic
	}
	if req.Date != nil {
		d := *req.Date
		sched.Date = &d
		updates[model.FieldDate.Column()] = d
	}
	if len(req.Participants) > 0 {
		for slot, name := range req.Participants {
			name = strings.TrimSpace(name)
			sched.SetParticipant(slot, name)
			updates[model.ParticipantField(slot).Column()] = name
		}
		sched.RefreshSearchableParticipants()
		updates["searchable_participants"] = sched.SearchableParticipants
	}
	return updates
}

func (s *scheduleService) checkParticipant(ctx context.Context, sched *model.Schedule, caller Caller) error {
	user, err := s.repo.User.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleForbidden
		}
		return err
	}
	if slices.Contains([]string(sched.SearchableParticipants), user.DisplayNameLower) {
		return nil
	}
	return ErrScheduleForbidden
}

// ═══════════════════════════════════════════════════════════
// Delete
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Schedule.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrScheduleNotFound
		}
		s.logger.Error("failed to delete schedule", zap.String("schedule_id", id), zap.Error(err))
		return err
	}
	s.events.Publish(EventSchedulesChanged, map[string]interface{}{"action": "delete", "ids": []string{id}})
	return nil
}

// ═══════════════════════════════════════════════════════════
// BulkReplace
// ═══════════════════════════════════════════════════════════
//
// Matches are split into batches of schedule.batch_size, each committed
// in its own transaction, at most schedule.max_concurrent_batches at a
// time. Batches that committed stay committed when another fails; the
// caller gets a BatchError naming both sets. Running the same request
// again only touches rows that still hold the old value.

func (s *scheduleService) BulkReplace(ctx context.Context, req *dto.BulkReplaceRequest, caller Caller) (*dto.BulkReplaceResponse, error) {
	if strings.TrimSpace(req.Field) == "" || req.Find == "" {
		return nil, ErrEmptySearch
	}
	field, err := model.ParseScheduleField(req.Field)
	if err != nil || !field.IsBulkReplaceable() {
		return nil, ErrFieldNotReplaceable
	}

	matches, err := s.repo.Schedule.ListByFieldValue(ctx, field, req.Find)
	if err != nil {
		s.logger.Error("failed to find bulk replace matches", zap.Error(err))
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNoMatch
	}
	if !req.Confirm {
		return nil, &ConfirmationRequiredError{Count: len(matches), Field: field, Find: req.Find, Replace: req.Replace}
	}

	batches := chunkSchedules(matches, s.cfg.Schedule.BatchSize)
	updated := make([]int64, len(batches))
	errs := make([]error, len(batches))

	// plain Group: one failed batch must not cancel the others
	var g errgroup.Group
	g.SetLimit(max(1, s.cfg.Schedule.MaxConcurrentBatches))
	for i, batch := range batches {
		i, batch := i, batch // per-iteration copies (go directive < 1.22)
		g.Go(func() error {
			updated[i], errs[i] = s.repo.Schedule.ReplaceFieldBatch(ctx, field, req.Find, req.Replace, batch)
			return nil
		})
	}
	_ = g.Wait()

	batchErr := &pkgerrors.BatchError{Total: len(batches), Failed: make(map[int]error)}
	var total int64
	for i := range batches {
		if errs[i] != nil {
			batchErr.Failed[i] = errs[i]
			s.metrics.BulkBatches.WithLabelValues("failed").Inc()
			continue
		}
		batchErr.Committed = append(batchErr.Committed, i)
		total += updated[i]
		s.metrics.BulkBatches.WithLabelValues("committed").Inc()
	}

	if len(batchErr.Committed) > 0 {
		s.events.Publish(EventSchedulesChanged, map[string]interface{}{"action": "bulk_replace", "field": string(field)})
	}
	if len(batchErr.Failed) > 0 {
		s.logger.Error("bulk replace partially failed",
			zap.String("field", string(field)),
			zap.String("by", caller.UserID),
			zap.Ints("failed_batches", batchErr.FailedBatches()),
			zap.Int("committed_batches", len(batchErr.Committed)),
			zap.Error(batchErr),
		)
		return nil, batchErr
	}

	s.logger.Info("bulk replace committed",
		zap.String("field", string(field)),
		zap.String("by", caller.UserID),
		zap.Int("matched", len(matches)),
		zap.Int64("updated", total),
		zap.Int("batches", len(batches)),
	)
	return &dto.BulkReplaceResponse{
		Field:   string(field),
		Matched: len(matches),
		Updated: total,
		Batches: len(batches),
	}, nil
}

// ═══════════════════════════════════════════════════════════
// Dispatch: admin table row commands
// ═══════════════════════════════════════════════════════════

func (s *scheduleService) Dispatch(ctx context.Context, id string, req *dto.RowActionRequest, caller Caller) (*dto.RowActionResponse, error) {
	switch req.Action {
	case dto.RowActionEdit, dto.RowActionCancel:
		sched, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &dto.RowActionResponse{Action: req.Action, Schedule: sched}, nil

	case dto.RowActionSave:
		res, err := s.Update(ctx, id, &req.UpdateScheduleRequest, caller)
		if err != nil {
			return nil, err
		}
		return &dto.RowActionResponse{Action: req.Action, Schedule: &res.Schedule, Shifted: res.Shifted}, nil

	case dto.RowActionDelete:
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return &dto.RowActionResponse{Action: req.Action, Deleted: true}, nil

	default:
		return nil, ErrUnknownRowAction
	}
}

// ── helpers ──

func (s *scheduleService) getSchedule(ctx context.Context, id string) (*model.Schedule, error) {
	sched, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduleNotFound
		}
		s.logger.Error("failed to load schedule", zap.String("schedule_id", id), zap.Error(err))
		return nil, err
	}
	return sched, nil
}

func toScheduleResponse(s *model.Schedule) dto.ScheduleResponse {
	resp := dto.ScheduleResponse{
		ID:              s.ScheduleID,
		Subject:         s.Subject,
		Institution:     s.Institution,
		DiscussionTopic: s.DiscussionTopic,
		Participants:    s.Participants(),
		CreatedAt:       formatTime(s.CreatedAt),
		UpdatedAt:       formatTime(s.UpdatedAt),
	}
	if s.Date != nil {
		d := s.Date.Format(time.RFC3339)
		resp.Date = &d
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
