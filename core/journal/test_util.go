package journal

import (
	"context"
	"time"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service with an injectable clock
// that sends review mails synchronously.
func NewServiceMock(
	repo Repository,
	usrRepo user.Repository,
	mailSvc core.EmailService,
	logger core.Logger,
	now func() time.Time,
) Service {
	if now == nil {
		now = time.Now
	}
	return &serviceMock{
		service: service{
			repo:    repo,
			usrRepo: usrRepo,
			mailSvc: mailSvc,
			logger:  logger,
			now:     now,
		},
	}
}

func (svc *serviceMock) Review(ctx context.Context, re ReviewEntry) (Entry, error) {
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

	svc.sendReviewMail(ctx, saved)
	return saved, nil
}
