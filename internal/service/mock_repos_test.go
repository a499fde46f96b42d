package service

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	"github.com/msyamrijal/jadwal-website/pkg/webpush"
)

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	mu        sync.Mutex
	schedules map[string]*model.Schedule
	order     []string

	// ReplaceFieldBatch fails for any batch containing one of these IDs
	failBatchWith map[string]error
	batchSizes    []int
	shiftCalls    int
	updateCalls   int
	created       int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{
		schedules:     make(map[string]*model.Schedule),
		failBatchWith: make(map[string]error),
	}
}

func (m *mockScheduleRepo) put(s *model.Schedule) {
	if _, ok := m.schedules[s.ScheduleID]; !ok {
		m.order = append(m.order, s.ScheduleID)
	}
	m.schedules[s.ScheduleID] = s
}

func (m *mockScheduleRepo) all() []model.Schedule {
	out := make([]model.Schedule, 0, len(m.order))
	for _, id := range m.order {
		if s, ok := m.schedules[id]; ok {
			out = append(out, *s)
		}
	}
	return out
}

func (m *mockScheduleRepo) Create(_ context.Context, s *model.Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ScheduleID == "" {
		m.created++
		s.ScheduleID = fmt.Sprintf("sched-%d", m.created)
	}
	s.RefreshSearchableParticipants()
	m.put(s)
	return nil
}

func (m *mockScheduleRepo) BatchCreate(ctx context.Context, schedules []*model.Schedule, _ int) error {
	for _, s := range schedules {
		if err := m.Create(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.schedules[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) List(_ context.Context, filter repository.ScheduleFilter) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		match := true
		for f, v := range filter.Contains {
			if !strings.Contains(strings.ToLower(s.FieldValue(f)), strings.ToLower(v)) {
				match = false
			}
		}
		if match {
			out = append(out, s)
		}
	}
	if filter.Sort == repository.SortDateAsc || filter.Sort == repository.SortDateDesc {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].Date, out[j].Date
			if a == nil || b == nil {
				return b == nil && a != nil
			}
			if filter.Sort == repository.SortDateAsc {
				return a.Before(*b)
			}
			return a.After(*b)
		})
	}
	return out, nil
}

func (m *mockScheduleRepo) ListFrom(_ context.Context, from time.Time) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		if s.Date != nil && !s.Date.Before(from) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) ListBetween(_ context.Context, from, to time.Time) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		if s.Date != nil && !s.Date.Before(from) && s.Date.Before(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) ListByParticipant(_ context.Context, normalized string) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		if slices.Contains([]string(s.SearchableParticipants), normalized) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) ListBySeries(_ context.Context, subject, institution string) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		if s.Subject == subject && s.Institution == institution {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) ListByFieldValue(_ context.Context, field model.ScheduleField, value string) ([]model.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Schedule
	for _, s := range m.all() {
		if s.FieldValue(field) == value {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) apply(s *model.Schedule, updates map[string]interface{}) {
	for col, v := range updates {
		switch col {
		case "date":
			d := v.(time.Time)
			s.Date = &d
		case "searchable_participants":
			// rebuilt from the stored slots below
		case "updated_by":
			by := v.(string)
			s.UpdatedBy = &by
		default:
			f, err := model.ParseScheduleField(col)
			if err == nil {
				s.SetFieldValue(f, v.(string))
			}
		}
	}
	s.RefreshSearchableParticipants()
}

func (m *mockScheduleRepo) Update(_ context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	s, ok := m.schedules[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	m.apply(s, updates)
	return nil
}

func (m *mockScheduleRepo) UpdateWithShifts(_ context.Context, id string, updates map[string]interface{}, shifts []repository.DateShift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shiftCalls++
	s, ok := m.schedules[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for _, sh := range shifts {
		if _, ok := m.schedules[sh.ScheduleID]; !ok {
			return gorm.ErrRecordNotFound
		}
	}
	m.apply(s, updates)
	for _, sh := range shifts {
		d := sh.Date
		m.schedules[sh.ScheduleID].Date = &d
	}
	return nil
}

func (m *mockScheduleRepo) ReplaceFieldBatch(_ context.Context, field model.ScheduleField, find, replace string, batch []model.Schedule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, len(batch))
	for _, row := range batch {
		if err, ok := m.failBatchWith[row.ScheduleID]; ok {
			return 0, err
		}
	}
	var n int64
	for _, row := range batch {
		s, ok := m.schedules[row.ScheduleID]
		if !ok || s.FieldValue(field) != find {
			continue
		}
		s.SetFieldValue(field, replace)
		n++
	}
	return n, nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.schedules, id)
	return nil
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // key: user_id
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return gorm.ErrDuplicatedKey
		}
	}
	if user.UserID == "" {
		user.UserID = "user-" + user.Email
	}
	m.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByDisplayNames(_ context.Context, lowered []string) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if slices.Contains(lowered, u.DisplayNameLower) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *mockUserRepo) Update(_ context.Context, id string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for col, v := range updates {
		switch col {
		case "display_name":
			u.DisplayName = v.(string)
		case "display_name_lower":
			u.DisplayNameLower = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "role":
			u.Role = v.(string)
		}
	}
	return nil
}

// ── Mock PushRepository ──

type mockPushRepo struct {
	mu         sync.Mutex
	subs       map[string]*model.PushSubscription // key: endpoint
	deliveries []model.PushDelivery
	seq        int
}

func newMockPushRepo() *mockPushRepo {
	return &mockPushRepo{subs: make(map[string]*model.PushSubscription)}
}

func (m *mockPushRepo) UpsertSubscription(_ context.Context, sub *model.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[sub.Endpoint]; ok {
		existing.UserID, existing.P256dh, existing.Auth = sub.UserID, sub.P256dh, sub.Auth
		sub.ID = existing.ID
		return nil
	}
	if sub.ID == "" {
		m.seq++
		sub.ID = fmt.Sprintf("sub-%d", m.seq)
	}
	cp := *sub
	m.subs[sub.Endpoint] = &cp
	return nil
}

func (m *mockPushRepo) DeleteSubscription(_ context.Context, userID, endpoint string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subs[endpoint]; ok && s.UserID == userID {
		delete(m.subs, endpoint)
		return 1, nil
	}
	return 0, nil
}

func (m *mockPushRepo) DeleteSubscriptionsByID(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ep, s := range m.subs {
		if slices.Contains(ids, s.ID) {
			delete(m.subs, ep)
		}
	}
	return nil
}

func (m *mockPushRepo) ListSubscriptionsByUsers(_ context.Context, userIDs []string) ([]model.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PushSubscription
	for _, s := range m.subs {
		if slices.Contains(userIDs, s.UserID) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPushRepo) CountSubscriptions(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.subs {
		if s.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (m *mockPushRepo) CreateDeliveries(_ context.Context, deliveries []model.PushDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, deliveries...)
	return nil
}

// ── Fakes for infra collaborators ──

type fakeTokenStore struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{revoked: make(map[string]time.Duration)}
}

func (f *fakeTokenStore) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = ttl
	return nil
}

func (f *fakeTokenStore) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok, nil
}

type fakeLocker struct {
	held map[string]bool
}

func (f *fakeLocker) AcquireLock(_ context.Context, name string, _ time.Duration) (bool, error) {
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[name] {
		return false, nil
	}
	f.held[name] = true
	return true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, name string) error {
	delete(f.held, name)
	return nil
}

// fakePushSender answers by endpoint: status 410 marks a gone subscription
type fakePushSender struct {
	mu     sync.Mutex
	status map[string]int
	sent   []webpush.Message
}

func (f *fakePushSender) PublicKey() string { return "test-public-key" }

func (f *fakePushSender) SendAll(_ context.Context, msgs []webpush.Message) []webpush.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]webpush.Result, len(msgs))
	for i, msg := range msgs {
		f.sent = append(f.sent, msg)
		code := http.StatusCreated
		if c, ok := f.status[msg.Target.Endpoint]; ok {
			code = c
		}
		res := webpush.Result{Target: msg.Target, StatusCode: code}
		switch {
		case code == http.StatusNotFound || code == http.StatusGone:
			res.Err = webpush.ErrGone
		case code >= http.StatusMultipleChoices:
			res.Err = fmt.Errorf("push service returned %d", code)
		}
		results[i] = res
	}
	return results
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

// ── helpers ──

func newTestRepo() (*repository.Repository, *mockScheduleRepo, *mockUserRepo, *mockPushRepo) {
	sr, ur, pr := newMockScheduleRepo(), newMockUserRepo(), newMockPushRepo()
	return &repository.Repository{Schedule: sr, User: ur, Push: pr}, sr, ur, pr
}

func addUser(ur *mockUserRepo, id, name, role string) *model.User {
	u := &model.User{UserID: id, Email: id + "@test.id", Role: role}
	u.SetDisplayName(name)
	ur.users[id] = u
	return u
}

func addSchedule(sr *mockScheduleRepo, id, subject, institution string, date time.Time, participants ...string) *model.Schedule {
	d := date
	s := &model.Schedule{ScheduleID: id, Subject: subject, Institution: institution, Date: &d}
	for i, p := range participants {
		s.SetParticipant(i+1, p)
	}
	s.RefreshSearchableParticipants()
	sr.put(s)
	return s
}
