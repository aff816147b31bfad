package journal

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

// DateLayout is the ISO calendar date format journal entries are keyed by.
const DateLayout = "2006-01-02"

// Entry is a student's journal for a single calendar date.
// An Entry's identity is the (UserID, Date) pair; ID renders it "{userID}_{date}".
type Entry struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Date        string    `json:"date" db:"date"`
	Week        int       `json:"week" db:"week"`
	Content     string    `json:"content" db:"content"`
	Submitted   bool      `json:"submitted" db:"submitted"`
	Reviewed    bool      `json:"reviewed" db:"reviewed"`
	Remarks     string    `json:"remarks" db:"remarks"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`     // UTC
	SubmittedAt null.Time `json:"submitted_at" db:"submitted_at"` // set on final submission only
}

// EntryID renders the external identity key of an entry.
func EntryID(userID, date string) string {
	return userID + "_" + date
}

// Override is an admin-set global workday override for a calendar date.
// When present it wins over any per-user work schedule.
type Override struct {
	Date      string `json:"date" db:"date"`
	IsWorkday bool   `json:"is_workday" db:"is_workday"`
}

// Progress is a student's submission history vs their specific schedule.
// It is derived, never persisted.
type Progress struct {
	TotalSubmitted int       `json:"total_submitted"`
	TotalMissing   int       `json:"total_missing"`
	MissingDates   []string  `json:"missing_dates"` // ascending
	Journals       []Entry   `json:"journals"`      // date descending
	User           user.User `json:"user"`
}

// NewEntry contains information needed to create or update a journal Entry.
type NewEntry struct {
	UserID    string `json:"user_id" validate:"required"`
	Date      string `json:"date" validate:"required,datestr"`
	Content   string `json:"content"`
	Submitted bool   `json:"submitted"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.Date = core.CleanString(ne.Date)
	return validate.Struct(ne)
}

// ReviewEntry contains information needed to mark an Entry as reviewed.
type ReviewEntry struct {
	UserID  string `json:"user_id" validate:"required"`
	Date    string `json:"date" validate:"required,datestr"`
	Remarks string `json:"remarks"`
}

func (re *ReviewEntry) Validate(validate *validator.Validate) error {
	re.Date = core.CleanString(re.Date)
	return validate.Struct(re)
}

// NewOverride contains information needed to set a workday Override.
type NewOverride struct {
	Date      string `json:"date" validate:"required,datestr"`
	IsWorkday bool   `json:"is_workday"`
}

func (no *NewOverride) Validate(validate *validator.Validate) error {
	no.Date = core.CleanString(no.Date)
	return validate.Struct(no)
}
