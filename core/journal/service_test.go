package journal_test

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
	"github.com/trezcool/mazoezi/services/email"
	"github.com/trezcool/mazoezi/services/logger"
	"github.com/trezcool/mazoezi/storage/database/dummy"
)

var ctx = context.Background()

func TestWeekNumber(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatalf("parsing %s: %v", s, err)
		}
		return d
	}
	start := day("2024-01-01") // a Monday

	tests := []struct {
		name     string
		date     time.Time
		ojtStart time.Time
		want     int
	}{
		{name: "zero start clamps to week 1", date: day("2024-03-15"), want: 1},
		{name: "date before start clamps to week 1", date: day("2023-12-25"), ojtStart: start, want: 1},
		{name: "start day is week 1", date: start, ojtStart: start, want: 1},
		{name: "6 days in is still week 1", date: day("2024-01-07"), ojtStart: start, want: 1},
		{name: "7 days in is week 2", date: day("2024-01-08"), ojtStart: start, want: 2},
		{name: "13 days in is still week 2", date: day("2024-01-14"), ojtStart: start, want: 2},
		{name: "14 days in is week 3", date: day("2024-01-15"), ojtStart: start, want: 3},
		{
			name:     "time of day does not shift the week",
			date:     day("2024-01-08").Add(1 * time.Hour),
			ojtStart: start.Add(23 * time.Hour),
			want:     2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := journal.WeekNumber(tt.date, tt.ojtStart); got != tt.want {
				t.Errorf("WeekNumber() = %v, want %v", got, tt.want)
			}
		})
	}
}

type testEnv struct {
	svc     journal.Service
	usrRepo user.Repository
	repo    journal.Repository
}

func setup(t *testing.T, now func() time.Time) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setting up DB: %v", err)
	}
	repo := dummydb.NewJournalRepository(db)
	usrRepo := dummydb.NewUserRepository(db)

	conf := &core.Config{
		AppName:          "Mazoezi",
		DefaultFromEmail: mail.Address{Name: "Mazoezi", Address: "noreply@test.cd"},
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := journal.NewServiceMock(repo, usrRepo, mailSvc, logsvc.NewTestLogger(), now)

	return &testEnv{svc: svc, usrRepo: usrRepo, repo: repo}
}

func (env *testEnv) createUser(t *testing.T, ojtStart string, schedule []int) user.User {
	t.Helper()

	usr := user.User{
		Name:         "Awa Diop",
		Email:        "awadiop@test.cd",
		Role:         user.RoleStudent,
		WorkSchedule: schedule,
	}
	if ojtStart != "" {
		start, err := time.Parse(journal.DateLayout, ojtStart)
		if err != nil {
			t.Fatalf("parsing %s: %v", ojtStart, err)
		}
		usr.OJTStart = null.TimeFrom(start.UTC())
	}
	usr.SetActive(true)

	usr, err := env.usrRepo.CreateUser(ctx, usr)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return usr
}

func TestService_IsWorkday(t *testing.T) {
	env := setup(t, nil)
	usr := env.createUser(t, "2024-01-01", nil)                // default Mon-Fri
	weekendUsr := env.createUser(t, "2024-01-01", []int{0, 6}) // Sun & Sat

	// a Saturday turned on; a Monday turned off
	for _, ov := range []journal.NewOverride{
		{Date: "2024-01-06", IsWorkday: true},
		{Date: "2024-01-08", IsWorkday: false},
	} {
		if _, err := env.svc.SetWorkday(ctx, ov); err != nil {
			t.Fatalf("setting override: %v", err)
		}
	}

	tests := []struct {
		name   string
		date   string
		userID string
		want   bool
	}{
		{name: "weekday on default schedule", date: "2024-01-02", userID: usr.ID, want: true},
		{name: "saturday off default schedule", date: "2024-01-13", userID: usr.ID, want: false},
		{name: "custom schedule includes saturday", date: "2024-01-13", userID: weekendUsr.ID, want: true},
		{name: "custom schedule excludes tuesday", date: "2024-01-02", userID: weekendUsr.ID, want: false},
		{name: "override wins over schedule: saturday on", date: "2024-01-06", userID: usr.ID, want: true},
		{name: "override wins over schedule: monday off", date: "2024-01-08", userID: usr.ID, want: false},
		{name: "unknown user fails open", date: "2024-01-13", userID: "nope", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := env.svc.IsWorkday(ctx, tt.date, tt.userID); got != tt.want {
				t.Errorf("IsWorkday() = %v, want %v", got, tt.want)
			}
		})
	}
}

// faultyJournalRepo fails every override lookup, as a downed store would.
type faultyJournalRepo struct {
	journal.Repository
}

func (r faultyJournalRepo) GetOverride(ctx context.Context, date string) (journal.Override, error) {
	return journal.Override{}, errors.New("workday store down")
}

// faultyUserRepo fails every profile lookup.
type faultyUserRepo struct {
	user.Repository
}

func (r faultyUserRepo) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	return user.User{}, errors.New("user store down")
}

func TestService_IsWorkdayFailsOpen(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	env := setup(t, func() time.Time { return now })
	usr := env.createUser(t, "2024-01-01", nil) // default Mon-Fri

	conf := &core.Config{
		AppName:          "Mazoezi",
		DefaultFromEmail: mail.Address{Name: "Mazoezi", Address: "noreply@test.cd"},
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	nowFn := func() time.Time { return now }

	t.Run("override lookup failure", func(t *testing.T) {
		svc := journal.NewServiceMock(faultyJournalRepo{env.repo}, env.usrRepo, mailSvc, logsvc.NewTestLogger(), nowFn)
		// a Saturday, off schedule; the fault still lets it through
		if !svc.IsWorkday(ctx, "2024-01-13", usr.ID) {
			t.Error("IsWorkday() = false on override store fault, want true")
		}
	})

	t.Run("profile lookup failure", func(t *testing.T) {
		svc := journal.NewServiceMock(env.repo, faultyUserRepo{env.usrRepo}, mailSvc, logsvc.NewTestLogger(), nowFn)
		if !svc.IsWorkday(ctx, "2024-01-13", usr.ID) {
			t.Error("IsWorkday() = false on user store fault, want true")
		}
	})

	t.Run("submitting during an override store outage still lands", func(t *testing.T) {
		svc := journal.NewServiceMock(faultyJournalRepo{env.repo}, env.usrRepo, mailSvc, logsvc.NewTestLogger(), nowFn)
		entry, err := svc.Save(ctx, journal.NewEntry{
			UserID:    usr.ID,
			Date:      "2024-01-13",
			Content:   "kept working through the outage",
			Submitted: true,
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if !entry.Submitted {
			t.Error("Save() did not mark the entry submitted")
		}
		if got, err := env.repo.GetEntry(ctx, usr.ID, "2024-01-13"); err != nil || !got.Submitted {
			t.Errorf("GetEntry() = (%+v, %v), want a submitted entry", got, err)
		}
	})
}

func TestService_Save(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	env := setup(t, func() time.Time { return now })
	usr := env.createUser(t, "2024-01-01", nil)

	t.Run("submitting off schedule is rejected", func(t *testing.T) {
		_, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:    usr.ID,
			Date:      "2024-01-13", // a Saturday
			Content:   "weekend hustle",
			Submitted: true,
		})
		if errors.Cause(err) != journal.ErrScheduleViolation {
			t.Errorf("Save() error = %v, want %v", err, journal.ErrScheduleViolation)
		}
	})

	t.Run("drafts are exempt from the schedule gate", func(t *testing.T) {
		entry, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:  usr.ID,
			Date:    "2024-01-13",
			Content: "weekend notes",
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if entry.Submitted {
			t.Error("Save() marked a draft submitted")
		}
		if entry.SubmittedAt.Valid {
			t.Error("Save() set SubmittedAt on a draft")
		}
	})

	t.Run("submitting sets week and timestamp", func(t *testing.T) {
		entry, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:    usr.ID,
			Date:      "2024-01-10", // week 2
			Content:   "built the thing",
			Submitted: true,
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if entry.Week != 2 {
			t.Errorf("Save() week = %v, want 2", entry.Week)
		}
		if !entry.Submitted {
			t.Error("Save() did not mark the entry submitted")
		}
		if !entry.SubmittedAt.Valid || !entry.SubmittedAt.Time.Equal(now) {
			t.Errorf("Save() SubmittedAt = %v, want %v", entry.SubmittedAt, now)
		}
	})

	t.Run("resaving preserves unspecified fields", func(t *testing.T) {
		entry, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:  usr.ID,
			Date:    "2024-01-10",
			Content: "built the thing, fixed a typo",
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if entry.Content != "built the thing, fixed a typo" {
			t.Errorf("Save() content = %q", entry.Content)
		}
		if !entry.SubmittedAt.Valid || !entry.SubmittedAt.Time.Equal(now) {
			t.Errorf("Save() dropped SubmittedAt: %v", entry.SubmittedAt)
		}
	})

	t.Run("submitting twice is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			entry, err := env.svc.Save(ctx, journal.NewEntry{
				UserID:    usr.ID,
				Date:      "2024-01-09",
				Content:   "same day, same story",
				Submitted: true,
			})
			if err != nil {
				t.Fatalf("Save() #%d failed: %v", i+1, err)
			}
			if !entry.Submitted {
				t.Errorf("Save() #%d did not mark the entry submitted", i+1)
			}
		}
		entries, err := env.svc.QueryByUser(ctx, usr.ID)
		if err != nil {
			t.Fatalf("QueryByUser() failed: %v", err)
		}
		var count int
		for _, e := range entries {
			if e.Date == "2024-01-09" {
				count++
			}
		}
		if count != 1 {
			t.Errorf("found %d entries for 2024-01-09, want 1", count)
		}
	})

	t.Run("reviewed entries are locked", func(t *testing.T) {
		if _, err := env.svc.Review(ctx, journal.ReviewEntry{
			UserID:  usr.ID,
			Date:    "2024-01-10",
			Remarks: "good work",
		}); err != nil {
			t.Fatalf("Review() failed: %v", err)
		}
		_, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:  usr.ID,
			Date:    "2024-01-10",
			Content: "sneaky edit",
		})
		if errors.Cause(err) != journal.ErrReviewLocked {
			t.Errorf("Save() error = %v, want %v", err, journal.ErrReviewLocked)
		}
	})

	t.Run("unknown user still saves with week 1", func(t *testing.T) {
		entry, err := env.svc.Save(ctx, journal.NewEntry{
			UserID:  "ghost",
			Date:    "2024-01-10",
			Content: "who am I",
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if entry.Week != 1 {
			t.Errorf("Save() week = %v, want 1", entry.Week)
		}
	})
}

func TestService_Get(t *testing.T) {
	env := setup(t, nil)
	usr := env.createUser(t, "2024-01-01", nil)

	entry, err := env.svc.Get(ctx, usr.ID, "2024-01-02")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("Get() = %v, want nil for an absent entry", entry)
	}

	if _, err = env.svc.Save(ctx, journal.NewEntry{UserID: usr.ID, Date: "2024-01-02", Content: "day one"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	entry, err = env.svc.Get(ctx, usr.ID, "2024-01-02")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if entry == nil || entry.Content != "day one" {
		t.Errorf("Get() = %v, want the saved entry", entry)
	}
}

func TestService_QueryByUser(t *testing.T) {
	env := setup(t, nil)
	usr := env.createUser(t, "2024-01-01", nil)

	entries, err := env.svc.QueryByUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByUser() failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("QueryByUser() = %v, want an empty slice", entries)
	}

	for _, date := range []string{"2024-01-02", "2024-01-04", "2024-01-03"} {
		if _, err = env.svc.Save(ctx, journal.NewEntry{UserID: usr.ID, Date: date, Content: "notes"}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	entries, err = env.svc.QueryByUser(ctx, usr.ID)
	if err != nil {
		t.Fatalf("QueryByUser() failed: %v", err)
	}
	want := []string{"2024-01-04", "2024-01-03", "2024-01-02"} // newest first
	if len(entries) != len(want) {
		t.Fatalf("QueryByUser() returned %d entries, want %d", len(entries), len(want))
	}
	for i, date := range want {
		if entries[i].Date != date {
			t.Errorf("entries[%d].Date = %s, want %s", i, entries[i].Date, date)
		}
	}
}

func TestService_Progress(t *testing.T) {
	now := time.Date(2024, 1, 8, 9, 0, 0, 0, time.UTC) // a Monday
	env := setup(t, func() time.Time { return now })
	usr := env.createUser(t, "2024-01-01", nil) // Monday, default Mon-Fri

	// submitted: Jan 2 & 4; draft: Jan 3
	for _, date := range []string{"2024-01-02", "2024-01-04"} {
		if _, err := env.svc.Save(ctx, journal.NewEntry{UserID: usr.ID, Date: date, Content: "done", Submitted: true}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}
	if _, err := env.svc.Save(ctx, journal.NewEntry{UserID: usr.ID, Date: "2024-01-03", Content: "wip"}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	progress, err := env.svc.Progress(ctx, usr.ID)
	if err != nil {
		t.Fatalf("Progress() failed: %v", err)
	}
	if progress.TotalSubmitted != 2 {
		t.Errorf("TotalSubmitted = %v, want 2", progress.TotalSubmitted)
	}
	// scheduled days: Jan 1-5 and Jan 8 (today, inclusive); drafts do not count
	wantMissing := []string{"2024-01-01", "2024-01-03", "2024-01-05", "2024-01-08"}
	if progress.TotalMissing != len(wantMissing) {
		t.Errorf("TotalMissing = %v, want %v", progress.TotalMissing, len(wantMissing))
	}
	if len(progress.MissingDates) != len(wantMissing) {
		t.Fatalf("MissingDates = %v, want %v", progress.MissingDates, wantMissing)
	}
	for i, date := range wantMissing {
		if progress.MissingDates[i] != date {
			t.Errorf("MissingDates[%d] = %s, want %s", i, progress.MissingDates[i], date)
		}
	}
	if len(progress.Journals) != 3 {
		t.Errorf("Journals has %d entries, want 3", len(progress.Journals))
	}
	if progress.User.ID != usr.ID {
		t.Errorf("User.ID = %s, want %s", progress.User.ID, usr.ID)
	}

	t.Run("overrides do not rewrite past obligations", func(t *testing.T) {
		if _, err := env.svc.SetWorkday(ctx, journal.NewOverride{Date: "2024-01-03", IsWorkday: false}); err != nil {
			t.Fatalf("SetWorkday() failed: %v", err)
		}
		progress, err := env.svc.Progress(ctx, usr.ID)
		if err != nil {
			t.Fatalf("Progress() failed: %v", err)
		}
		if progress.TotalMissing != len(wantMissing) {
			t.Errorf("TotalMissing = %v, want %v", progress.TotalMissing, len(wantMissing))
		}
	})

	t.Run("no OJT start means nothing is due", func(t *testing.T) {
		lateStarter := user.User{Name: "Ben Mwamba", Email: "benmwamba@test.cd", Role: user.RoleStudent}
		lateStarter, err := env.usrRepo.CreateUser(ctx, lateStarter)
		if err != nil {
			t.Fatalf("creating user: %v", err)
		}
		progress, err := env.svc.Progress(ctx, lateStarter.ID)
		if err != nil {
			t.Fatalf("Progress() failed: %v", err)
		}
		if progress.TotalMissing != 0 || len(progress.MissingDates) != 0 {
			t.Errorf("Progress() = %+v, want no missing dates", progress)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if _, err := env.svc.Progress(ctx, "ghost"); errors.Cause(err) != user.ErrNotFound {
			t.Errorf("Progress() error = %v, want %v", err, user.ErrNotFound)
		}
	})
}

func TestService_Review(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	env := setup(t, func() time.Time { return now })
	usr := env.createUser(t, "2024-01-01", nil)

	if _, err := env.svc.Save(ctx, journal.NewEntry{UserID: usr.ID, Date: "2024-01-02", Content: "done", Submitted: true}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	sentBefore := len(emailsvc.SentMessages)
	entry, err := env.svc.Review(ctx, journal.ReviewEntry{UserID: usr.ID, Date: "2024-01-02", Remarks: "more detail please"})
	if err != nil {
		t.Fatalf("Review() failed: %v", err)
	}
	if !entry.Reviewed {
		t.Error("Review() did not mark the entry reviewed")
	}
	if entry.Remarks != "more detail please" {
		t.Errorf("Review() remarks = %q", entry.Remarks)
	}
	if len(emailsvc.SentMessages) != sentBefore+1 {
		t.Errorf("Review() sent %d mails, want 1", len(emailsvc.SentMessages)-sentBefore)
	} else {
		msg := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
		if len(msg.To) != 1 || msg.To[0].Address != usr.Email {
			t.Errorf("review mail sent to %v, want %s", msg.To, usr.Email)
		}
	}

	if _, err = env.svc.Review(ctx, journal.ReviewEntry{UserID: usr.ID, Date: "2024-01-31"}); errors.Cause(err) != journal.ErrNotFound {
		t.Errorf("Review() error = %v, want %v", err, journal.ErrNotFound)
	}
}

func TestService_Overrides(t *testing.T) {
	env := setup(t, nil)

	overrides, err := env.svc.QueryOverrides(ctx)
	if err != nil {
		t.Fatalf("QueryOverrides() failed: %v", err)
	}
	if overrides == nil || len(overrides) != 0 {
		t.Errorf("QueryOverrides() = %v, want an empty slice", overrides)
	}

	for _, ov := range []journal.NewOverride{
		{Date: "2024-01-06", IsWorkday: true},
		{Date: "2024-01-01", IsWorkday: false},
	} {
		if _, err = env.svc.SetWorkday(ctx, ov); err != nil {
			t.Fatalf("SetWorkday() failed: %v", err)
		}
	}
	// flipping an existing override replaces it
	if _, err = env.svc.SetWorkday(ctx, journal.NewOverride{Date: "2024-01-06", IsWorkday: false}); err != nil {
		t.Fatalf("SetWorkday() failed: %v", err)
	}

	overrides, err = env.svc.QueryOverrides(ctx)
	if err != nil {
		t.Fatalf("QueryOverrides() failed: %v", err)
	}
	if len(overrides) != 2 {
		t.Fatalf("QueryOverrides() returned %d overrides, want 2", len(overrides))
	}
	if overrides[0].Date != "2024-01-01" || overrides[1].Date != "2024-01-06" {
		t.Errorf("QueryOverrides() order = %v, want dates ascending", overrides)
	}
	if overrides[1].IsWorkday {
		t.Error("SetWorkday() did not replace the existing override")
	}
}
