package session

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/mazoezi/core/user"
)

var (
	// errors
	ErrAuthFailed         = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrProfileMissing     = errors.New("no profile found for this account")
)

// paths
const (
	LandingPath          = "/"
	AdminDashboardPath   = "/admin/dashboard"
	StudentDashboardPath = "/student/dashboard"
)

type (
	// Principal is an authenticated identity as reported by the AuthProvider.
	// It carries no profile data; the profile lives in user.Repository.
	Principal struct {
		UID   string
		Email string
	}

	// Unsubscribe cancels an auth-state subscription.
	Unsubscribe func()

	AuthProvider interface {
		SignIn(ctx context.Context, email, password string) (Principal, error)
		SignOut(ctx context.Context) error
		// OnStateChange fires the handler immediately with the current state
		// and again on every sign-in/sign-out transition.
		// A nil Principal means no active session.
		OnStateChange(handler func(p *Principal)) Unsubscribe
	}

	// Navigator abstracts the hosting environment's location and redirection.
	Navigator interface {
		CurrentPath() string
		Redirect(path string)
	}
)

// DashboardPath maps a role to its dashboard; anything unrecognized
// lands on the landing page.
func DashboardPath(role string) string {
	switch role {
	case user.RoleAdmin:
		return AdminDashboardPath
	case user.RoleStudent:
		return StudentDashboardPath
	default:
		return LandingPath
	}
}

// Decision is the outcome of a page-access check.
// A zero Decision means stay put.
type Decision struct {
	RedirectTo  string
	ForceLogout bool
}

// Decide applies the page-access rules to an auth-state event. It is pure:
// subscribing, profile loading and redirecting happen elsewhere.
// A nil profile alongside a live principal is a data-integrity fault
// and forces a logout.
func Decide(p *Principal, profile *user.User, currentPath, requiredRole string) Decision {
	if p == nil {
		if currentPath != LandingPath {
			return Decision{RedirectTo: LandingPath}
		}
		return Decision{}
	}
	if profile == nil {
		return Decision{ForceLogout: true}
	}
	if requiredRole != "" && profile.Role != requiredRole {
		return Decision{RedirectTo: DashboardPath(profile.Role)}
	}
	if currentPath == LandingPath {
		return Decision{RedirectTo: DashboardPath(profile.Role)}
	}
	return Decision{}
}
