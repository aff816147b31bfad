package journal

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("journal not found")
	ErrOverrideNotFound  = errors.New("workday override not found")
	ErrReviewLocked      = errors.New("cannot edit a journal that has already been reviewed")
	ErrScheduleViolation = errors.New("this date is not part of the OJT schedule")
)

type (
	Repository interface {
		// GetEntry returns ErrNotFound when no entry exists for (userID, date).
		GetEntry(ctx context.Context, userID, date string) (Entry, error)
		// SaveEntry upserts the full entry row.
		SaveEntry(ctx context.Context, entry Entry) (Entry, error)
		// QueryEntriesByUser returns the user's entries ordered by date descending.
		QueryEntriesByUser(ctx context.Context, userID string) ([]Entry, error)
		// GetOverride returns ErrOverrideNotFound when no override exists for date.
		GetOverride(ctx context.Context, date string) (Override, error)
		SetOverride(ctx context.Context, ov Override) (Override, error)
		// QueryOverrides returns all overrides ordered by date ascending.
		QueryOverrides(ctx context.Context) ([]Override, error)
	}

	Service interface {
		IsWorkday(ctx context.Context, date, userID string) bool
		Save(ctx context.Context, ne NewEntry) (Entry, error)
		// Get returns (nil, nil) when no entry exists; absence is not an error.
		Get(ctx context.Context, userID, date string) (*Entry, error)
		QueryByUser(ctx context.Context, userID string) ([]Entry, error)
		Progress(ctx context.Context, userID string) (Progress, error)
		Review(ctx context.Context, re ReviewEntry) (Entry, error)
		SetWorkday(ctx context.Context, no NewOverride) (Override, error)
		QueryOverrides(ctx context.Context) ([]Override, error)
	}

	service struct {
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
		logger  core.Logger
		now     func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrRepo user.Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		logger:  logger,
		now:     time.Now,
	}
}

// WeekNumber computes the OJT week of `date` relative to `ojtStart`, starting at 1.
// Dates preceding ojtStart clamp to 1; a zero ojtStart always yields 1.
// Both sides are normalized to UTC midnight so time-of-day never shifts the week.
func WeekNumber(date, ojtStart time.Time) int {
	if ojtStart.IsZero() {
		return 1
	}
	diff := midnight(date).Sub(midnight(ojtStart))
	if diff < 0 {
		return 1
	}
	days := int(diff / (24 * time.Hour))
	return days/7 + 1
}

func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWorkday resolves whether `date` is a workday for the given user:
// a global override wins; otherwise the user's schedule decides (Mon-Fri default).
// Lookup failures fail open: a workday check never blocks a save on infrastructure faults.
func (svc *service) IsWorkday(ctx context.Context, date, userID string) bool {
	ov, err := svc.repo.GetOverride(ctx, date)
	if err == nil {
		return ov.IsWorkday
	}
	if errors.Cause(err) != ErrOverrideNotFound {
		svc.logger.Warn(fmt.Sprintf("checking workday override for %s: %v", date, err), err)
		return true
	}

	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			svc.logger.Warn(fmt.Sprintf("checking work schedule of user %s: %v", userID, err), err)
		}
		return true
	}

	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return true
	}
	weekday := int(d.Weekday())
	for _, day := range usr.Schedule() {
		if day == weekday {
			return true
		}
	}
	return false
}

// Save creates or updates the journal entry keyed by (UserID, Date).
// Submitting on a non-workday fails with ErrScheduleViolation; drafts are exempt.
// A reviewed entry rejects any further write with ErrReviewLocked.
// Existing fields the caller does not carry (Remarks, SubmittedAt) are preserved.
func (svc *service) Save(ctx context.Context, ne NewEntry) (Entry, error) {
	if ne.Submitted && !svc.IsWorkday(ctx, ne.Date, ne.UserID) {
		return Entry{}, ErrScheduleViolation
	}

	date, err := time.Parse(DateLayout, ne.Date)
	if err != nil {
		return Entry{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "must be a date in YYYY-MM-DD format"})
	}

	var ojtStart time.Time
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: ne.UserID})
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return Entry{}, errors.Wrap(err, "finding user")
	}
	if err == nil && usr.OJTStart.Valid {
		ojtStart = usr.OJTStart.Time
	}

	now := svc.now().UTC()
	entry := Entry{
		ID:        EntryID(ne.UserID, ne.Date),
		UserID:    ne.UserID,
		Date:      ne.Date,
		Week:      WeekNumber(date, ojtStart),
		Content:   ne.Content,
		Submitted: ne.Submitted,
		UpdatedAt: now,
	}

	existing, err := svc.repo.GetEntry(ctx, ne.UserID, ne.Date)
	if err == nil {
		if existing.Reviewed {
			return Entry{}, ErrReviewLocked
		}
		entry.Remarks = existing.Remarks
		entry.SubmittedAt = existing.SubmittedAt
	} else if errors.Cause(err) != ErrNotFound {
		return Entry{}, errors.Wrap(err, "finding journal")
	}

	if ne.Submitted {
		entry.SubmittedAt = null.TimeFrom(now)
	}

	return svc.repo.SaveEntry(ctx, entry)
}

func (svc *service) Get(ctx context.Context, userID, date string) (*Entry, error) {
	entry, err := svc.repo.GetEntry(ctx, userID, date)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (svc *service) QueryByUser(ctx context.Context, userID string) ([]Entry, error) {
	entries, err := svc.repo.QueryEntriesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Progress aggregates the user's submission history against their schedule,
// scanning every calendar day from OJT start through today (inclusive).
// Missing dates follow the profile schedule only; global overrides are not
// consulted here, so a later override never rewrites past obligations.
func (svc *service) Progress(ctx context.Context, userID string) (Progress, error) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: userID})
	if err != nil {
		return Progress{}, err
	}

	journals, err := svc.QueryByUser(ctx, userID)
	if err != nil {
		return Progress{}, err
	}

	submitted := make(map[string]struct{}, len(journals))
	for _, e := range journals {
		if e.Submitted {
			submitted[e.Date] = struct{}{}
		}
	}

	missing := make([]string, 0)
	if usr.OJTStart.Valid {
		var scheduled [7]bool
		for _, day := range usr.Schedule() {
			if day >= 0 && day <= 6 {
				scheduled[day] = true
			}
		}

		today := midnight(svc.now())
		for cur := midnight(usr.OJTStart.Time); !cur.After(today); cur = cur.AddDate(0, 0, 1) {
			if !scheduled[int(cur.Weekday())] {
				continue
			}
			if _, ok := submitted[cur.Format(DateLayout)]; !ok {
				missing = append(missing, cur.Format(DateLayout))
			}
		}
	}

	return Progress{
		TotalSubmitted: len(submitted),
		TotalMissing:   len(missing),
		MissingDates:   missing,
		Journals:       journals,
		User:           usr,
	}, nil
}

// Review marks an entry reviewed with the admin's remarks; it is idempotent.
// Once reviewed, the entry is locked against any further Save.
func (svc *service) Review(ctx context.Context, re ReviewEntry) (Entry, error) {
	entry, err := svc.repo.GetEntry(ctx, re.UserID, re.Date)
	if err != nil {
		return Entry{}, err
	}

	entry.Reviewed = true
	entry.Remarks = re.Remarks
	entry.UpdatedAt = svc.now().UTC()

	saved, err := svc.repo.SaveEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}

	go svc.sendReviewMail(ctx, saved)
	return saved, nil
}

func (svc *service) sendReviewMail(ctx context.Context, entry Entry) {
	usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: entry.UserID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("finding user %s for review mail: %v", entry.UserID, err), err)
		return
	}

	body := fmt.Sprintf("Hi %s,\n\nYour journal for %s (week %d) has been reviewed.", usr.Name, entry.Date, entry.Week)
	if entry.Remarks != "" {
		body += "\n\nRemarks:\n" + entry.Remarks
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("Journal Reviewed - %s", entry.Date),
		BodyStr: body,
	})
}

func (svc *service) SetWorkday(ctx context.Context, no NewOverride) (Override, error) {
	return svc.repo.SetOverride(ctx, Override{Date: no.Date, IsWorkday: no.IsWorkday})
}

func (svc *service) QueryOverrides(ctx context.Context) ([]Override, error) {
	overrides, err := svc.repo.QueryOverrides(ctx)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []Override{}
	}
	return overrides, nil
}
