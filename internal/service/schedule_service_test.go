package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/msyamrijal/jadwal-website/config"
	"github.com/msyamrijal/jadwal-website/internal/dto"
	"github.com/msyamrijal/jadwal-website/internal/model"
	"github.com/msyamrijal/jadwal-website/internal/repository"
	pkgerrors "github.com/msyamrijal/jadwal-website/pkg/errors"
	"github.com/msyamrijal/jadwal-website/pkg/metrics"
)

var jakarta = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		return time.FixedZone("WIB", 7*3600)
	}
	return loc
}()

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{BaseURL: "https://jadwal.test"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret-key-for-unit-testing-2026",
			AccessTokenTTL:          15 * time.Minute,
			RefreshTokenTTLDefault:  24 * time.Hour,
			RefreshTokenTTLRemember: 7 * 24 * time.Hour,
			ResetTokenTTL:           time.Hour,
			FeedTokenTTL:            24 * time.Hour,
		},
		Schedule: config.ScheduleConfig{
			Timezone:             "Asia/Jakarta",
			BatchSize:            500,
			MaxConcurrentBatches: 4,
			SessionDuration:      2 * time.Hour,
		},
		Push: config.PushConfig{DashboardURL: "/dashboard.html", LockTTL: time.Hour},
		Import: config.ImportConfig{
			FetchTimeout: 5 * time.Second,
			MaxBytes:     1 << 20,
		},
	}
}

func wib(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, jakarta)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

type scheduleFixture struct {
	svc    ScheduleService
	sched  *mockScheduleRepo
	users  *mockUserRepo
	events *recordingPublisher
	m      *metrics.Metrics
}

func setupScheduleService() *scheduleFixture {
	repo, sr, ur, _ := newTestRepo()
	events := &recordingPublisher{}
	m := metrics.New()
	return &scheduleFixture{
		svc:    NewScheduleService(testConfig(), repo, events, m, zap.NewNop()),
		sched:  sr,
		users:  ur,
		events: events,
		m:      m,
	}
}

var admin = Caller{UserID: "admin-1", Role: model.RoleAdmin}

// ── Create ──

func TestCreateSchedule_Success(t *testing.T) {
	f := setupScheduleService()
	date := wib(2025, 1, 10, 13, 0)

	resp, err := f.svc.Create(context.Background(), &dto.CreateScheduleRequest{
		Subject:      "  Fiqih ",
		Institution:  "MA Darul Ulum",
		Date:         &date,
		Participants: []string{"Budi", "", " Siti "},
	}, admin)
	if err != nil {
		t.Fatalf("Create seharusnya berhasil: %v", err)
	}
	if resp.Subject != "Fiqih" {
		t.Errorf("subject = %q, diharapkan Fiqih", resp.Subject)
	}
	stored := f.sched.schedules[resp.ID]
	if got := []string(stored.SearchableParticipants); !slices.Equal(got, []string{"budi", "siti"}) {
		t.Errorf("searchable = %v", got)
	}
	if len(f.events.events) != 1 {
		t.Errorf("diharapkan 1 event, dapat %d", len(f.events.events))
	}
}

func TestCreateSchedule_Validation(t *testing.T) {
	f := setupScheduleService()
	date := wib(2025, 1, 10, 13, 0)

	_, err := f.svc.Create(context.Background(), &dto.CreateScheduleRequest{Subject: " ", Date: &date}, admin)
	if !errors.Is(err, ErrSubjectRequired) {
		t.Errorf("diharapkan ErrSubjectRequired, dapat %v", err)
	}
	_, err = f.svc.Create(context.Background(), &dto.CreateScheduleRequest{Subject: "Fiqih"}, admin)
	if !errors.Is(err, ErrDateRequired) {
		t.Errorf("diharapkan ErrDateRequired, dapat %v", err)
	}
	_, err = f.svc.Create(context.Background(), &dto.CreateScheduleRequest{
		Subject: "Fiqih", Date: &date, Participants: make([]string, 13),
	}, admin)
	if !errors.Is(err, ErrTooManyParticipants) {
		t.Errorf("diharapkan ErrTooManyParticipants, dapat %v", err)
	}
}

// ── Read ──

func TestSearchByParticipant_CaseInsensitive(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "s1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0), "Budi", "Siti")
	addSchedule(f.sched, "s2", "Nahwu", "MA", wib(2025, 1, 11, 13, 0), "Andi")

	got, err := f.svc.SearchByParticipant(context.Background(), "  BUDI ")
	if err != nil {
		t.Fatalf("SearchByParticipant gagal: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("hasil = %+v, diharapkan hanya s1", got)
	}

	empty, _ := f.svc.SearchByParticipant(context.Background(), "   ")
	if len(empty) != 0 {
		t.Errorf("nama kosong harus menghasilkan daftar kosong, dapat %d", len(empty))
	}
}

func TestList_SkipsUndated(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "s1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))
	f.sched.put(&model.Schedule{ScheduleID: "s2", Subject: "Tanpa Tanggal"})

	got, err := f.svc.List(context.Background(), repository.ScheduleFilter{})
	if err != nil {
		t.Fatalf("List gagal: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Errorf("hasil = %+v, diharapkan hanya s1", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := setupScheduleService()
	_, err := f.svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("diharapkan ErrScheduleNotFound, dapat %v", err)
	}
}

// ── Update + cascade ──

func TestUpdate_CascadeRequiresConfirmation(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))
	addSchedule(f.sched, "r2", "Fiqih", "MA", wib(2025, 1, 17, 13, 0))

	_, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		Date:    timePtr(wib(2025, 1, 12, 13, 0)),
		Cascade: true,
	}, admin)

	var confirm *ConfirmationRequiredError
	if !errors.As(err, &confirm) {
		t.Fatalf("diharapkan ConfirmationRequiredError, dapat %v", err)
	}
	if confirm.Count != 2 {
		t.Errorf("count = %d, diharapkan 2", confirm.Count)
	}
	if f.sched.updateCalls+f.sched.shiftCalls != 0 {
		t.Error("tidak boleh ada penulisan sebelum konfirmasi")
	}
	if got := *f.sched.schedules["r2"].Date; !got.Equal(wib(2025, 1, 17, 13, 0)) {
		t.Errorf("r2 tidak boleh bergeser, dapat %v", got)
	}
}

func TestUpdate_CascadeConfirmed(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))
	addSchedule(f.sched, "r2", "Fiqih", "MA", wib(2025, 1, 17, 13, 0))
	addSchedule(f.sched, "r0", "Fiqih", "MA", wib(2025, 1, 3, 13, 0))
	addSchedule(f.sched, "x1", "Fiqih", "MTs", wib(2025, 1, 17, 13, 0))

	resp, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		Date:    timePtr(wib(2025, 1, 12, 13, 0)),
		Cascade: true,
		Confirm: true,
	}, admin)
	if err != nil {
		t.Fatalf("Update gagal: %v", err)
	}
	if resp.Shifted != 1 || resp.DayDiff != 2 {
		t.Errorf("shifted=%d dayDiff=%d, diharapkan 1 dan 2", resp.Shifted, resp.DayDiff)
	}
	if f.sched.shiftCalls != 1 {
		t.Errorf("diharapkan satu transaksi UpdateWithShifts, dapat %d", f.sched.shiftCalls)
	}
	if got := *f.sched.schedules["r2"].Date; !got.Equal(wib(2025, 1, 19, 13, 0)) {
		t.Errorf("r2 = %v, diharapkan 2025-01-19 13:00", got)
	}
	if got := *f.sched.schedules["r0"].Date; !got.Equal(wib(2025, 1, 3, 13, 0)) {
		t.Errorf("jadwal sebelumnya tidak boleh bergeser, dapat %v", got)
	}
	if got := *f.sched.schedules["x1"].Date; !got.Equal(wib(2025, 1, 17, 13, 0)) {
		t.Errorf("institusi lain tidak boleh bergeser, dapat %v", got)
	}
	if v := testutil.ToFloat64(f.m.CascadeShifts); v != 1 {
		t.Errorf("metrik cascade = %v, diharapkan 1", v)
	}
}

func TestUpdate_SameDayNeverPrompts(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))
	addSchedule(f.sched, "r2", "Fiqih", "MA", wib(2025, 1, 17, 13, 0))

	resp, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		Date:    timePtr(wib(2025, 1, 10, 20, 30)),
		Cascade: true,
	}, admin)
	if err != nil {
		t.Fatalf("perubahan jam saja tidak boleh meminta konfirmasi: %v", err)
	}
	if resp.Shifted != 0 {
		t.Errorf("shifted = %d, diharapkan 0", resp.Shifted)
	}
	if f.sched.shiftCalls != 0 || f.sched.updateCalls != 1 {
		t.Errorf("diharapkan Update biasa, shift=%d update=%d", f.sched.shiftCalls, f.sched.updateCalls)
	}
}

func TestUpdate_WithoutCascadeMovesOnlyTarget(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))
	addSchedule(f.sched, "r2", "Fiqih", "MA", wib(2025, 1, 17, 13, 0))

	_, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		Date: timePtr(wib(2025, 1, 12, 13, 0)),
	}, admin)
	if err != nil {
		t.Fatalf("Update gagal: %v", err)
	}
	if got := *f.sched.schedules["r2"].Date; !got.Equal(wib(2025, 1, 17, 13, 0)) {
		t.Errorf("r2 tidak boleh bergeser tanpa cascade, dapat %v", got)
	}
}

func TestUpdate_ParticipantRecomputesSearchable(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0), "Budi", "Siti")

	_, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		Participants: map[int]string{1: " Andi ", 3: "SITI"},
	}, admin)
	if err != nil {
		t.Fatalf("Update gagal: %v", err)
	}
	got := []string(f.sched.schedules["r1"].SearchableParticipants)
	if !slices.Equal(got, []string{"andi", "siti"}) {
		t.Errorf("searchable = %v, diharapkan [andi siti]", got)
	}
}

func TestUpdate_Validation(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))

	cases := []struct {
		name string
		req  dto.UpdateScheduleRequest
		want error
	}{
		{"kosong", dto.UpdateScheduleRequest{}, ErrNothingToUpdate},
		{"subject kosong", dto.UpdateScheduleRequest{Subject: strPtr("  ")}, ErrSubjectRequired},
		{"slot 0", dto.UpdateScheduleRequest{Participants: map[int]string{0: "x"}}, ErrInvalidParticipantSlot},
		{"slot 13", dto.UpdateScheduleRequest{Participants: map[int]string{13: "x"}}, ErrInvalidParticipantSlot},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Update(context.Background(), "r1", &tc.req, admin)
			if !errors.Is(err, tc.want) {
				t.Errorf("diharapkan %v, dapat %v", tc.want, err)
			}
		})
	}
	if f.sched.updateCalls != 0 {
		t.Error("validasi gagal tidak boleh menulis")
	}
}

func TestUpdate_MemberMustBeParticipant(t *testing.T) {
	f := setupScheduleService()
	addUser(f.users, "u1", "Budi", model.RoleMember)
	addUser(f.users, "u2", "Andi", model.RoleMember)
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0), "budi")

	_, err := f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		DiscussionTopic: strPtr("Bab Thaharah"),
	}, Caller{UserID: "u2", Role: model.RoleMember})
	if !errors.Is(err, ErrScheduleForbidden) {
		t.Errorf("diharapkan ErrScheduleForbidden, dapat %v", err)
	}

	_, err = f.svc.Update(context.Background(), "r1", &dto.UpdateScheduleRequest{
		DiscussionTopic: strPtr("Bab Thaharah"),
	}, Caller{UserID: "u1", Role: model.RoleMember})
	if err != nil {
		t.Errorf("peserta harus boleh mengubah: %v", err)
	}
}

// ── BulkReplace ──

func seedBulk(sr *mockScheduleRepo, n int, subject string) {
	for i := 0; i < n; i++ {
		addSchedule(sr, fmt.Sprintf("b%04d", i), subject, "MA", wib(2025, 2, 1, 8, 0))
	}
}

func TestBulkReplace_RequiresConfirmation(t *testing.T) {
	f := setupScheduleService()
	seedBulk(f.sched, 3, "Fikih")

	_, err := f.svc.BulkReplace(context.Background(), &dto.BulkReplaceRequest{
		Field: "Mata_Pelajaran", Find: "Fikih", Replace: "Fiqih",
	}, admin)

	var confirm *ConfirmationRequiredError
	if !errors.As(err, &confirm) {
		t.Fatalf("diharapkan ConfirmationRequiredError, dapat %v", err)
	}
	if confirm.Count != 3 || confirm.Field != model.FieldSubject {
		t.Errorf("prompt = %+v", confirm)
	}
	if len(f.sched.batchSizes) != 0 {
		t.Error("tidak boleh ada batch sebelum konfirmasi")
	}
}

func TestBulkReplace_SplitsIntoBatches(t *testing.T) {
	f := setupScheduleService()
	seedBulk(f.sched, 501, "Fikih")

	resp, err := f.svc.BulkReplace(context.Background(), &dto.BulkReplaceRequest{
		Field: "subject", Find: "Fikih", Replace: "Fiqih", Confirm: true,
	}, admin)
	if err != nil {
		t.Fatalf("BulkReplace gagal: %v", err)
	}
	if resp.Batches != 2 || resp.Matched != 501 || resp.Updated != 501 {
		t.Errorf("resp = %+v", resp)
	}
	sizes := slices.Clone(f.sched.batchSizes)
	slices.Sort(sizes)
	if !slices.Equal(sizes, []int{1, 500}) {
		t.Errorf("ukuran batch = %v, diharapkan [1 500]", sizes)
	}
	for _, s := range f.sched.schedules {
		if s.Subject != "Fiqih" {
			t.Fatalf("%s masih %q", s.ScheduleID, s.Subject)
		}
	}
}

func TestBulkReplace_PartialFailure(t *testing.T) {
	f := setupScheduleService()
	seedBulk(f.sched, 501, "Fikih")
	boom := errors.New("deadlock detected")
	f.sched.failBatchWith["b0500"] = boom

	_, err := f.svc.BulkReplace(context.Background(), &dto.BulkReplaceRequest{
		Field: "subject", Find: "Fikih", Replace: "Fiqih", Confirm: true,
	}, admin)

	var batchErr *pkgerrors.BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("diharapkan BatchError, dapat %v", err)
	}
	if !slices.Equal(batchErr.FailedBatches(), []int{1}) || !slices.Equal(batchErr.Committed, []int{0}) {
		t.Errorf("failed=%v committed=%v", batchErr.FailedBatches(), batchErr.Committed)
	}
	if !errors.Is(err, boom) {
		t.Error("BatchError harus membungkus error batch")
	}
	if f.sched.schedules["b0000"].Subject != "Fiqih" {
		t.Error("batch yang berhasil tetap tersimpan")
	}
	if f.sched.schedules["b0500"].Subject != "Fikih" {
		t.Error("batch yang gagal tidak boleh berubah")
	}
}

func TestBulkReplace_ParticipantRecomputesSearchable(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "p1", "Fiqih", "MA", wib(2025, 2, 1, 8, 0), "Budi", "Siti")

	_, err := f.svc.BulkReplace(context.Background(), &dto.BulkReplaceRequest{
		Field: "Peserta 2", Find: "Siti", Replace: "Aisyah", Confirm: true,
	}, admin)
	if err != nil {
		t.Fatalf("BulkReplace gagal: %v", err)
	}
	got := []string(f.sched.schedules["p1"].SearchableParticipants)
	if !slices.Equal(got, []string{"budi", "aisyah"}) {
		t.Errorf("searchable = %v", got)
	}
}

func TestBulkReplace_Rejections(t *testing.T) {
	f := setupScheduleService()
	seedBulk(f.sched, 1, "Fikih")

	cases := []struct {
		name string
		req  dto.BulkReplaceRequest
		want error
	}{
		{"field kosong", dto.BulkReplaceRequest{Find: "x"}, ErrEmptySearch},
		{"find kosong", dto.BulkReplaceRequest{Field: "subject"}, ErrEmptySearch},
		{"tanggal", dto.BulkReplaceRequest{Field: "Tanggal", Find: "x"}, ErrFieldNotReplaceable},
		{"materi", dto.BulkReplaceRequest{Field: "Materi Diskusi", Find: "x"}, ErrFieldNotReplaceable},
		{"tidak dikenal", dto.BulkReplaceRequest{Field: "warna", Find: "x"}, ErrFieldNotReplaceable},
		{"tidak cocok", dto.BulkReplaceRequest{Field: "subject", Find: "Nahwu"}, ErrNoMatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.BulkReplace(context.Background(), &tc.req, admin)
			if !errors.Is(err, tc.want) {
				t.Errorf("diharapkan %v, dapat %v", tc.want, err)
			}
		})
	}
}

// ── Dispatch ──

func TestDispatch(t *testing.T) {
	f := setupScheduleService()
	addSchedule(f.sched, "r1", "Fiqih", "MA", wib(2025, 1, 10, 13, 0))

	res, err := f.svc.Dispatch(context.Background(), "r1", &dto.RowActionRequest{Action: dto.RowActionEdit}, admin)
	if err != nil || res.Schedule == nil || res.Schedule.ID != "r1" {
		t.Fatalf("edit: res=%+v err=%v", res, err)
	}

	req := &dto.RowActionRequest{Action: dto.RowActionSave}
	req.Subject = strPtr("Nahwu")
	res, err = f.svc.Dispatch(context.Background(), "r1", req, admin)
	if err != nil || res.Schedule.Subject != "Nahwu" {
		t.Fatalf("save: res=%+v err=%v", res, err)
	}

	_, err = f.svc.Dispatch(context.Background(), "r1", &dto.RowActionRequest{Action: "archive"}, admin)
	if !errors.Is(err, ErrUnknownRowAction) {
		t.Errorf("diharapkan ErrUnknownRowAction, dapat %v", err)
	}

	res, err = f.svc.Dispatch(context.Background(), "r1", &dto.RowActionRequest{Action: dto.RowActionDelete}, admin)
	if err != nil || !res.Deleted {
		t.Fatalf("delete: res=%+v err=%v", res, err)
	}
	if _, ok := f.sched.schedules["r1"]; ok {
		t.Error("r1 seharusnya terhapus")
	}

	_, err = f.svc.Dispatch(context.Background(), "r1", &dto.RowActionRequest{Action: dto.RowActionDelete}, admin)
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("diharapkan ErrScheduleNotFound, dapat %v", err)
	}
}

func TestConfirmationPrompt(t *testing.T) {
	cascade := &ConfirmationRequiredError{Count: 3, Subject: "Fiqih", Institution: "MA"}
	want := "Anda akan mengubah tanggal untuk 3 jadwal (Fiqih - MA) secara berurutan. Lanjutkan?"
	if cascade.Prompt() != want {
		t.Errorf("prompt = %q", cascade.Prompt())
	}

	bulk := &ConfirmationRequiredError{Count: 2, Field: model.ParticipantField(4), Find: "Siti", Replace: "Aisyah"}
	want = "Anda akan mengubah \"Siti\" menjadi \"Aisyah\" di kolom \"Peserta 4\" pada 2 jadwal. Lanjutkan?"
	if bulk.Prompt() != want {
		t.Errorf("prompt = %q", bulk.Prompt())
	}
}
