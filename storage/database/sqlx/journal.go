package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mazoezi/core/journal"
)

type journalRepository struct {
	db *sqlx.DB
}

var _ journal.Repository = (*journalRepository)(nil) // interface compliance check

func NewJournalRepository(db *sqlx.DB) journal.Repository {
	return &journalRepository{db: db}
}

const journalColumns = `id, user_id, date, week, content, submitted, reviewed, remarks, updated_at, submitted_at`

func (repo *journalRepository) GetEntry(ctx context.Context, userID, date string) (journal.Entry, error) {
	var entry journal.Entry
	q := `SELECT ` + journalColumns + ` FROM journal WHERE user_id = $1 AND date = $2`
	if err := repo.db.GetContext(ctx, &entry, q, userID, date); err != nil {
		if err == sql.ErrNoRows {
			return journal.Entry{}, journal.ErrNotFound
		}
		return journal.Entry{}, errors.Wrap(err, "getting journal")
	}
	return entry, nil
}

func (repo *journalRepository) SaveEntry(ctx context.Context, entry journal.Entry) (journal.Entry, error) {
	if entry.ID == "" {
		entry.ID = journal.EntryID(entry.UserID, entry.Date)
	}
	q := `INSERT INTO journal (` + journalColumns + `)
		VALUES (:id, :user_id, :date, :week, :content, :submitted, :reviewed, :remarks, :updated_at, :submitted_at)
		ON CONFLICT (id) DO UPDATE SET week = EXCLUDED.week, content = EXCLUDED.content,
		submitted = EXCLUDED.submitted, reviewed = EXCLUDED.reviewed, remarks = EXCLUDED.remarks,
		updated_at = EXCLUDED.updated_at, submitted_at = EXCLUDED.submitted_at`
	if _, err := repo.db.NamedExecContext(ctx, q, entry); err != nil {
		return journal.Entry{}, errors.Wrap(err, "saving journal")
	}
	return entry, nil
}

func (repo *journalRepository) QueryEntriesByUser(ctx context.Context, userID string) ([]journal.Entry, error) {
	entries := make([]journal.Entry, 0)
	q := `SELECT ` + journalColumns + ` FROM journal WHERE user_id = $1 ORDER BY date DESC`
	if err := repo.db.SelectContext(ctx, &entries, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying journals")
	}
	return entries, nil
}

func (repo *journalRepository) GetOverride(ctx context.Context, date string) (journal.Override, error) {
	var ov journal.Override
	q := `SELECT date, is_workday FROM workday_override WHERE date = $1`
	if err := repo.db.GetContext(ctx, &ov, q, date); err != nil {
		if err == sql.ErrNoRows {
			return journal.Override{}, journal.ErrOverrideNotFound
		}
		return journal.Override{}, errors.Wrap(err, "getting workday override")
	}
	return ov, nil
}

func (repo *journalRepository) SetOverride(ctx context.Context, ov journal.Override) (journal.Override, error) {
	q := `INSERT INTO workday_override (date, is_workday) VALUES (:date, :is_workday)
		ON CONFLICT (date) DO UPDATE SET is_workday = EXCLUDED.is_workday`
	if _, err := repo.db.NamedExecContext(ctx, q, ov); err != nil {
		return journal.Override{}, errors.Wrap(err, "setting workday override")
	}
	return ov, nil
}

func (repo *journalRepository) QueryOverrides(ctx context.Context) ([]journal.Override, error) {
	overrides := make([]journal.Override, 0)
	q := `SELECT date, is_workday FROM workday_override ORDER BY date ASC`
	if err := repo.db.SelectContext(ctx, &overrides, q); err != nil {
		return nil, errors.Wrap(err, "querying workday overrides")
	}
	return overrides, nil
}
