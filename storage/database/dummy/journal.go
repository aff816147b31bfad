package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/mazoezi/core/journal"
)

type journalRepository struct {
	db   *journalTable
	wdDB *workdayTable
}

var _ journal.Repository = (*journalRepository)(nil) // interface compliance check

func NewJournalRepository(db *DB) journal.Repository {
	return &journalRepository{db: db.journal, wdDB: db.workday}
}

func (repo *journalRepository) GetEntry(ctx context.Context, userID, date string) (journal.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if entry, ok := repo.db.table[journal.EntryID(userID, date)]; ok {
		return *entry, nil
	}
	return journal.Entry{}, journal.ErrNotFound
}

func (repo *journalRepository) SaveEntry(ctx context.Context, entry journal.Entry) (journal.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if entry.ID == "" {
		entry.ID = journal.EntryID(entry.UserID, entry.Date)
	}
	repo.db.table[entry.ID] = &entry
	return entry, nil
}

func (repo *journalRepository) QueryEntriesByUser(ctx context.Context, userID string) ([]journal.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]journal.Entry, 0)
	for _, e := range repo.db.table {
		if e.UserID == userID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date }) // date desc
	return entries, nil
}

func (repo *journalRepository) GetOverride(ctx context.Context, date string) (journal.Override, error) {
	repo.wdDB.RLock()
	defer repo.wdDB.RUnlock()

	if ov, ok := repo.wdDB.table[date]; ok {
		return *ov, nil
	}
	return journal.Override{}, journal.ErrOverrideNotFound
}

func (repo *journalRepository) SetOverride(ctx context.Context, ov journal.Override) (journal.Override, error) {
	repo.wdDB.Lock()
	defer repo.wdDB.Unlock()

	repo.wdDB.table[ov.Date] = &ov
	return ov, nil
}

func (repo *journalRepository) QueryOverrides(ctx context.Context) ([]journal.Override, error) {
	repo.wdDB.RLock()
	defer repo.wdDB.RUnlock()

	overrides := make([]journal.Override, 0, len(repo.wdDB.table))
	for _, ov := range repo.wdDB.table {
		overrides = append(overrides, *ov)
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].Date < overrides[j].Date }) // date asc
	return overrides, nil
}
