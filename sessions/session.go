package sessions

import (
	"github.com/jrsteele09/go-finadmin-client/token"
	"github.com/jrsteele09/go-finadmin-client/users"
)

// State is the lifecycle stage of the session.
//
//	Uninitialized -> Hydrating -> {Authenticated, Anonymous}
//	Authenticated -> Anonymous   (logout, terminal refresh failure, cross-tab logout)
//	Anonymous     -> Authenticated (login only)
type State int32

const (
	Uninitialized State = iota
	Hydrating
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Hydrating:
		return "hydrating"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return "unknown"
}

// Session is a point-in-time view of the signed-in admin. Tokens are read from the
// token store when the snapshot is taken so rotations are always visible.
type Session struct {
	State     State
	User      *users.SanitizedUser
	Tokens    *token.Pair
	IsLoading bool
}

// IsAuthenticated is derived: a user and tokens are both present.
func (s Session) IsAuthenticated() bool {
	return s.User != nil && s.Tokens != nil
}
