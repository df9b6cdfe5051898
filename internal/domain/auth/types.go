package auth

// Package auth contains domain-level types for authentication, sessions and screen gating.
// It is pure and free of framework/adapter concerns.

import (
	"encoding/json"
	"strings"
	"time"
)

// Role represents the remote API's user type.
// Keep the upper-case string form; it is what the API sends as userType.
type Role string

const (
	RoleDefault       Role = "DEFAULT"
	RoleUser          Role = "USER"
	RoleManager       Role = "MANAGER"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// Roles lists every role in privilege order, RoleDefault first.
func Roles() []Role {
	return []Role{RoleDefault, RoleUser, RoleManager, RoleAdministrator}
}

// ParseRole maps a wire value to a Role. Unknown values are treated as RoleDefault.
func ParseRole(s string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleUser, RoleManager, RoleAdministrator:
		return r
	default:
		return RoleDefault
	}
}

// UnmarshalJSON decodes a wire userType through ParseRole. Unknown, differently
// cased, null and non-string values all become RoleDefault, so a role the
// client does not recognise never opens a screen.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*r = RoleDefault
		return nil //nolint:nilerr // an unreadable role is the unassigned role
	}
	*r = ParseRole(s)
	return nil
}

// Rank orders roles by privilege: default < user < manager < administrator.
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleManager:
		return 2
	case RoleAdministrator:
		return 3
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDefault, RoleUser, RoleManager, RoleAdministrator:
		return true
	default:
		return false
	}
}

// lockoutThreshold is the failed-login count at which the API locks an account.
const lockoutThreshold = 3

// Principal is the authenticated user as confirmed by the remote API.
// The client never edits a Principal in place; it is replaced wholesale.
type Principal struct {
	UserID              int64     `json:"userid"`
	Role                Role      `json:"userType"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	FirstName           string    `json:"firstName"`
	LastName            string    `json:"lastName"`
	Birthday            Timestamp `json:"birthday"`
	Address             string    `json:"address"`
	IsVerified          bool      `json:"isVerified"`
	IsActive            bool      `json:"isActive"`
	JoinDate            Timestamp `json:"joinDate"`
	FailedLoginAttempts int       `json:"failedLoginAttempts"`
	TempLeaveStart      Timestamp `json:"tempLeaveStart"`
	TempLeaveEnd        Timestamp `json:"tempLeaveEnd"`
	EmailPassword       string    `json:"emailPassword,omitempty"`
}

// OnLeave reports whether now falls in the half-open leave window [start, end).
// Without an end there is no window. An unset start counts as the Unix epoch,
// so a principal with only an end date is on leave until that date.
func (p Principal) OnLeave(now time.Time) bool {
	if p.TempLeaveEnd.IsZero() {
		return false
	}
	start := time.Unix(0, 0)
	if !p.TempLeaveStart.IsZero() {
		start = p.TempLeaveStart.Time
	}
	return !now.Before(start) && now.Before(p.TempLeaveEnd.Time)
}

// IsLocked reports whether the account has hit the failed-login lockout.
func (p Principal) IsLocked() bool { return p.FailedLoginAttempts >= lockoutThreshold }

// IsDefault returns true while an administrator has not yet assigned a role.
// A role outside the known set counts as unassigned.
func (p Principal) IsDefault() bool { return !p.Role.Valid() || p.Role == RoleDefault }

// IsAdministrator returns true for administrator principals.
func (p Principal) IsAdministrator() bool { return p.Role == RoleAdministrator }

// DisplayName joins first and last name, falling back to the username.
func (p Principal) DisplayName() string {
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Username
	}
	return name
}

// TokenState describes the lifecycle of the anti-forgery token.
type TokenState int

const (
	// TokenUnresolved means no fetch has been attempted yet.
	TokenUnresolved TokenState = iota
	// TokenResolving means a fetch is in flight and no token is held.
	TokenResolving
	// TokenReady means a token is held.
	TokenReady
	// TokenUnavailable means the last fetch sequence exhausted its retries.
	TokenUnavailable
)

func (s TokenState) String() string {
	switch s {
	case TokenResolving:
		return "resolving"
	case TokenReady:
		return "ready"
	case TokenUnavailable:
		return "unavailable"
	default:
		return "unresolved"
	}
}
