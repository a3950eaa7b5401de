// models/role.go
package models

// Principal is the identity resolved from a Supabase access token.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Role is the authorization level resolved for a principal. Exactly one of
// three shapes: none (zero value), verifier (Verifier=true with its assigned
// games), or admin (Admin=true, which subsumes verifier everywhere).
type Role struct {
	Admin         bool
	Verifier      bool
	AssignedGames []string
	RunnerID      string
}

// None reports whether the principal holds no moderation role at all.
func (r Role) None() bool {
	return !r.Admin && !r.Verifier
}

// CanApproveRun reports whether the role may approve a run for the given game.
func (r Role) CanApproveRun(gameID string) bool {
	if r.Admin {
		return true
	}
	if !r.Verifier {
		return false
	}
	for _, g := range r.AssignedGames {
		if g == gameID {
			return true
		}
	}
	return false
}
