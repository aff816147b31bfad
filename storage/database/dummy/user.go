package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exclUsrsLen := len(excludedUsers)
	if exclUsrsLen > 1 {
		sort.Slice(excludedUsers, func(i, j int) bool { return excludedUsers[i].ID < excludedUsers[j].ID })
	}

	for _, usr := range repo.query() {
		if usr.Email == email && !isExcluded(usr, excludedUsers, exclUsrsLen) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.query() {
			if usr.Email == filter.Email {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()

	if filter != nil && !filter.IsEmpty() {
		// users with search keyword matching Name or Email ?
		if filter.Search != "" {
			var filtered []user.User
			for _, u := range users {
				if strings.Contains(strings.ToLower(u.Name), strings.ToLower(filter.Search)) ||
					strings.Contains(strings.ToLower(u.Email), strings.ToLower(filter.Search)) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		if users != nil && filter.Role != "" {
			var filtered []user.User
			for _, u := range users {
				if u.Role == filter.Role {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		if users != nil && filter.IsActive != nil {
			var filtered []user.User
			for _, u := range users {
				if u.IsActive != nil && *u.IsActive == *filter.IsActive {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		if users != nil && !filter.CreatedFrom.IsZero() {
			var filtered []user.User
			timeUTC := filter.CreatedFrom.UTC()
			for _, u := range users {
				if u.CreatedAt.Equal(timeUTC) || u.CreatedAt.After(timeUTC) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
		if users != nil && !filter.CreatedTo.IsZero() {
			var filtered []user.User
			timeUTC := filter.CreatedTo.UTC()
			for _, u := range users {
				if u.CreatedAt.Before(timeUTC) || u.CreatedAt.Equal(timeUTC) {
					filtered = append(filtered, u)
				}
			}
			users = filtered
		}
	}

	sortUsers(users, ordering)
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if usr.ID == "" {
		usr.ID = uuid.New().String()
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	ord := ordering[0] // single-field ordering is enough here
	sort.SliceStable(users, func(i, j int) bool {
		var less bool
		switch ord.Field {
		case "email":
			less = users[i].Email < users[j].Email
		case "created_at":
			less = users[i].CreatedAt.Before(users[j].CreatedAt)
		default:
			less = users[i].Name < users[j].Name
		}
		if !ord.Ascending {
			return !less
		}
		return less
	})
}

func isExcluded(usr user.User, excludedUsers []user.User, n int) bool {
	if n <= 0 {
		return false
	}
	idx := sort.Search(n, func(i int) bool { return excludedUsers[i].ID >= usr.ID })
	return idx < n && excludedUsers[idx].ID == usr.ID
}
