package authsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/session"
	"github.com/trezcool/mazoezi/core/user"
)

// LocalProvider implements session.AuthProvider against the user store
// directly: bcrypt credential check, in-process auth-state broadcast.
type LocalProvider struct {
	usrRepo user.Repository
	logger  core.Logger

	mu       sync.Mutex
	current  *session.Principal
	handlers map[int]func(p *session.Principal)
	nextID   int
}

var _ session.AuthProvider = (*LocalProvider)(nil)

func NewLocalProvider(usrRepo user.Repository, logger core.Logger) *LocalProvider {
	return &LocalProvider{
		usrRepo:  usrRepo,
		logger:   logger,
		handlers: make(map[int]func(p *session.Principal)),
	}
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (session.Principal, error) {
	usr, err := p.usrRepo.GetUser(ctx, user.GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return session.Principal{}, session.ErrAuthFailed
		}
		return session.Principal{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(password); err != nil {
		return session.Principal{}, session.ErrAuthFailed
	}
	if usr.IsActive != nil && !*usr.IsActive {
		return session.Principal{}, session.ErrAccountDeactivated
	}

	usr.LastLogin = time.Now().UTC()
	if _, err = p.usrRepo.UpdateUser(ctx, usr); err != nil {
		p.logger.Error(fmt.Sprintf("setting lastLogin of %s: %v", usr.ID, err), err)
	}

	principal := session.Principal{UID: usr.ID, Email: usr.Email}
	p.setState(&principal)
	return principal, nil
}

func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.setState(nil)
	return nil
}

// OnStateChange fires immediately with the current state, then on every
// sign-in/sign-out.
func (p *LocalProvider) OnStateChange(handler func(principal *session.Principal)) session.Unsubscribe {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.handlers[id] = handler
	current := p.current
	p.mu.Unlock()

	handler(current)

	return func() {
		p.mu.Lock()
		delete(p.handlers, id)
		p.mu.Unlock()
	}
}

func (p *LocalProvider) setState(principal *session.Principal) {
	p.mu.Lock()
	p.current = principal
	handlers := make([]func(principal *session.Principal), 0, len(p.handlers))
	for _, h := range p.handlers {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(principal)
	}
}
