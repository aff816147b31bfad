package dummydb

import (
	"sync"

	"github.com/trezcool/mazoezi/core/journal"
	"github.com/trezcool/mazoezi/core/user"
)

type (
	DB struct {
		user    *userTable
		journal *journalTable
		workday *workdayTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	journalTable struct {
		sync.RWMutex
		table map[string]*journal.Entry
	}

	workdayTable struct {
		sync.RWMutex
		table map[string]*journal.Override
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		journal: &journalTable{table: make(map[string]*journal.Entry)},
		workday: &workdayTable{table: make(map[string]*journal.Override)},
	}
	return db, nil
}
