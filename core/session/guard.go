package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/mazoezi/core"
	"github.com/trezcool/mazoezi/core/user"
)

// Guard authenticates users and enforces role-based page access.
// All collaborators are injected; it keeps no state beyond them.
type Guard struct {
	provider AuthProvider
	usrRepo  user.Repository
	nav      Navigator
	logger   core.Logger
}

func NewGuard(provider AuthProvider, usrRepo user.Repository, nav Navigator, logger core.Logger) *Guard {
	return &Guard{
		provider: provider,
		usrRepo:  usrRepo,
		nav:      nav,
		logger:   logger,
	}
}

// Login verifies credentials with the provider and fetches the matching
// profile. A valid principal without a profile row fails with
// ErrProfileMissing; that account cannot be used.
func (g *Guard) Login(ctx context.Context, email, password string) (Principal, user.User, error) {
	p, err := g.provider.SignIn(ctx, email, password)
	if err != nil {
		return Principal{}, user.User{}, err
	}
	usr, err := g.usrRepo.GetUser(ctx, user.GetFilter{ID: p.UID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Principal{}, user.User{}, ErrProfileMissing
		}
		return Principal{}, user.User{}, errors.Wrap(err, "finding profile")
	}
	return p, usr, nil
}

// Logout signs out and returns to the landing page.
// Provider errors are logged, never propagated.
func (g *Guard) Logout(ctx context.Context) {
	if err := g.provider.SignOut(ctx); err != nil {
		g.logger.Error(fmt.Sprintf("signing out: %v", err), err)
	}
	g.nav.Redirect(LandingPath)
}

// Watch subscribes to auth-state changes and enforces page access on every
// event, starting with the current state. The returned Unsubscribe must be
// called when the page unmounts.
func (g *Guard) Watch(requiredRole string) Unsubscribe {
	return g.provider.OnStateChange(func(p *Principal) {
		g.apply(p, requiredRole)
	})
}

func (g *Guard) apply(p *Principal, requiredRole string) {
	ctx := context.Background()

	var profile *user.User
	if p != nil {
		usr, err := g.usrRepo.GetUser(ctx, user.GetFilter{ID: p.UID})
		switch {
		case err == nil:
			profile = &usr
		case errors.Cause(err) == user.ErrNotFound:
			// confirmed absence; Decide forces the logout
		default:
			// transient fault: stay put rather than bounce the user around
			g.logger.Error(fmt.Sprintf("finding profile of %s: %v", p.UID, err), err)
			return
		}
	}

	d := Decide(p, profile, g.nav.CurrentPath(), requiredRole)
	if d.ForceLogout {
		g.Logout(ctx)
		return
	}
	if d.RedirectTo != "" && d.RedirectTo != g.nav.CurrentPath() {
		g.nav.Redirect(d.RedirectTo)
	}
}
