package auth

import "time"

// Requirement is the role predicate a screen declares.
type Requirement int

const (
	// RequireNonDefault admits any authenticated principal whose role has been assigned.
	RequireNonDefault Requirement = iota
	// RequireManagerOrAdmin admits managers and administrators.
	RequireManagerOrAdmin
	// RequireAdministrator admits administrators only.
	RequireAdministrator
)

func (r Requirement) String() string {
	switch r {
	case RequireManagerOrAdmin:
		return "manager_or_admin"
	case RequireAdministrator:
		return "administrator"
	default:
		return "non_default"
	}
}

// Allows evaluates the predicate. A nil principal never passes.
func (r Requirement) Allows(p *Principal) bool {
	if p == nil {
		return false
	}
	switch r {
	case RequireNonDefault:
		return !p.IsDefault()
	case RequireManagerOrAdmin:
		return p.Role.Rank() >= RoleManager.Rank()
	case RequireAdministrator:
		return p.Role.Rank() >= RoleAdministrator.Rank()
	default:
		return false
	}
}

// Decision is the outcome of gating a screen.
type Decision int

const (
	// DecisionPending means bootstrap is still resolving; show only a loading placeholder.
	DecisionPending Decision = iota
	// DecisionDenied means redirect to the login screen.
	DecisionDenied
	// DecisionAllowed means render the screen.
	DecisionAllowed
)

func (d Decision) String() string {
	switch d {
	case DecisionDenied:
		return "denied"
	case DecisionAllowed:
		return "allowed"
	default:
		return "pending"
	}
}

// Login rejection messages shown to the user verbatim.
const (
	MsgNotVerified  = "Your account is not yet verified. Please check your email."
	MsgNotConfirmed = "Your account has not yet been confirmed by an administrator."
	MsgOnLeave      = "Your account is inactive while out on leave."
)

// LoginVerdict is the result of checking a server-returned principal at login.
type LoginVerdict struct {
	Accepted bool
	Message  string
}

// EvaluateLogin applies the login acceptance rules in order:
// verified, then role assigned, then not on leave.
func EvaluateLogin(p Principal, now time.Time) LoginVerdict {
	switch {
	case !p.IsVerified:
		return LoginVerdict{Message: MsgNotVerified}
	case p.IsDefault():
		return LoginVerdict{Message: MsgNotConfirmed}
	case p.OnLeave(now):
		return LoginVerdict{Message: MsgOnLeave}
	default:
		return LoginVerdict{Accepted: true}
	}
}
