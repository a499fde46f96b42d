package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/msyamrijal/jadwal-website/internal/model"
)

// Sort orders for the admin table
const (
	SortDateDesc = "desc"
	SortDateAsc  = "asc"
	SortNone     = "none" // insertion order
)

// ScheduleFilter admin table query
type ScheduleFilter struct {
	// case-insensitive substring per field
	Contains map[model.ScheduleField]string
	Sort     string
	// zone used to render dates for the Tanggal filter
	Timezone string
}

// DateShift moves one schedule to a new date
type DateShift struct {
	ScheduleID string
	Date       time.Time
}

// ScheduleRepository schedule persistence
type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) error
	BatchCreate(ctx context.Context, schedules []*model.Schedule, batchSize int) error
	GetByID(ctx context.Context, id string) (*model.Schedule, error)
	List(ctx context.Context, filter ScheduleFilter) ([]model.Schedule, error)
	ListFrom(ctx context.Context, from time.Time) ([]model.Schedule, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Schedule, error)
	ListByParticipant(ctx context.Context, normalized string) ([]model.Schedule, error)
	ListBySeries(ctx context.Context, subject, institution string) ([]model.Schedule, error)
	ListByFieldValue(ctx context.Context, field model.ScheduleField, value string) ([]model.Schedule, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateWithShifts(ctx context.Context, id string, updates map[string]interface{}, shifts []DateShift) error
	ReplaceFieldBatch(ctx context.Context, field model.ScheduleField, find, replace string, batch []model.Schedule) (int64, error)
	Delete(ctx context.Context, id string) error
}

type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepo creates a ScheduleRepository
func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *scheduleRepo) BatchCreate(ctx context.Context, schedules []*model.Schedule, batchSize int) error {
	if len(schedules) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(schedules, batchSize).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.Schedule, error) {
	var s model.Schedule
	if err := r.db.WithContext(ctx).Where("schedule_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *scheduleRepo) List(ctx context.Context, filter ScheduleFilter) ([]model.Schedule, error) {
	db := r.db.WithContext(ctx).Model(&model.Schedule{})

	tz := filter.Timezone
	if tz == "" {
		tz = "UTC"
	}
	for field, term := range filter.Contains {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		pattern := "%" + escapeLike(term) + "%"
		if field == model.FieldDate {
			db = db.Where("to_char(date AT TIME ZONE ?, 'DD/MM/YYYY HH24:MI') ILIKE ?", tz, pattern)
			continue
		}
		db = db.Where(clause.Expr{
			SQL:  "? ILIKE ?",
			Vars: []interface{}{clause.Column{Name: field.Column()}, pattern},
		})
	}

	switch filter.Sort {
	case SortDateAsc:
		db = db.Order("date ASC NULLS LAST")
	case SortNone:
		db = db.Order("created_at ASC")
	default:
		db = db.Order("date DESC NULLS LAST")
	}

	var out []model.Schedule
	if err := db.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scheduleRepo) ListFrom(ctx context.Context, from time.Time) ([]model.Schedule, error) {
	var out []model.Schedule
	err := r.db.WithContext(ctx).
		Where("date >= ?", from).
		Order("date ASC").
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) ListBetween(ctx context.Context, from, to time.Time) ([]model.Schedule, error) {
	var out []model.Schedule
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) ListByParticipant(ctx context.Context, normalized string) ([]model.Schedule, error) {
	var out []model.Schedule
	err := r.db.WithContext(ctx).
		Where("? = ANY(searchable_participants)", normalized).
		Order("date ASC NULLS LAST").
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) ListBySeries(ctx context.Context, subject, institution string) ([]model.Schedule, error) {
	var out []model.Schedule
	err := r.db.WithContext(ctx).
		Where("subject = ? AND institution = ?", subject, institution).
		Order("date ASC NULLS LAST").
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) ListByFieldValue(ctx context.Context, field model.ScheduleField, value string) ([]model.Schedule, error) {
	var out []model.Schedule
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: field.Column()}, Value: value}).
		Order("schedule_id").
		Find(&out).Error
	return out, err
}

func (r *scheduleRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := updateLocked(tx, id, updates, nil)
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// UpdateWithShifts applies the primary edit and every shift in one
// transaction; nothing is visible unless all of them succeed.
func (r *scheduleRepo) UpdateWithShifts(ctx context.Context, id string, updates map[string]interface{}, shifts []DateShift) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := updateLocked(tx, id, updates, nil)
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}

		for _, sh := range shifts {
			shift := map[string]interface{}{"date": sh.Date}
			if by, ok := updates["updated_by"]; ok {
				shift["updated_by"] = by
			}
			res := tx.Model(&model.Schedule{}).
				Where("schedule_id = ?", sh.ScheduleID).
				Updates(shift)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

// ReplaceFieldBatch rewrites field from find to replace for every row of
// batch inside one transaction. Rows whose value no longer equals find are
// left alone, so re-running a batch is harmless. Only the IDs of batch are
// used; each row is re-read under lock before it is written.
func (r *scheduleRepo) ReplaceFieldBatch(ctx context.Context, field model.ScheduleField, find, replace string, batch []model.Schedule) (int64, error) {
	var affected int64
	col := field.Column()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		stillMatches := func(cur *model.Schedule) bool { return cur.FieldValue(field) == find }
		for i := range batch {
			updates := map[string]interface{}{col: replace, "updated_at": now}
			n, err := updateLocked(tx, batch[i].ScheduleID, updates, stillMatches)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			affected += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

// updateLocked writes updates to one row while holding its row lock.
// When a participant column is among the updates the searchable set is
// rebuilt from the locked row, so edits to other slots committed since
// the caller read the row are kept. A row failing match is skipped.
func updateLocked(tx *gorm.DB, id string, updates map[string]interface{}, match func(*model.Schedule) bool) (int64, error) {
	var cur model.Schedule
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("schedule_id = ?", id).
		First(&cur).Error
	if err != nil {
		return 0, err
	}
	if match != nil && !match(&cur) {
		return 0, nil
	}

	values := make(map[string]interface{}, len(updates)+1)
	participants := false
	for col, v := range updates {
		values[col] = v
		if n := model.ScheduleField(col).ParticipantSlot(); n > 0 {
			name, _ := v.(string)
			cur.SetParticipant(n, name)
			participants = true
		}
	}
	if participants {
		cur.RefreshSearchableParticipants()
		values["searchable_participants"] = cur.SearchableParticipants
	}

	res := tx.Model(&model.Schedule{}).Where("schedule_id = ?", id).Updates(values)
	return res.RowsAffected, res.Error
}

func (r *scheduleRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("schedule_id = ?", id).Delete(&model.Schedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
