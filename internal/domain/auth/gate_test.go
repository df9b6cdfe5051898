package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRequirement_TruthTable(t *testing.T) {
	tests := []struct {
		role Role
		req  Requirement
		want bool
	}{
		{RoleDefault, RequireNonDefault, false},
		{RoleUser, RequireNonDefault, true},
		{RoleManager, RequireNonDefault, true},
		{RoleAdministrator, RequireNonDefault, true},
		{RoleDefault, RequireAdministrator, false},
		{RoleUser, RequireAdministrator, false},
		{RoleManager, RequireAdministrator, false},
		{RoleAdministrator, RequireAdministrator, true},
		{RoleDefault, RequireManagerOrAdmin, false},
		{RoleUser, RequireManagerOrAdmin, false},
		{RoleManager, RequireManagerOrAdmin, true},
		{RoleAdministrator, RequireManagerOrAdmin, true},
		{Role("SUPERUSER"), RequireNonDefault, false},
		{Role("SUPERUSER"), RequireAdministrator, false},
		{Role("user"), RequireNonDefault, false},
		{Role(""), RequireNonDefault, false},
	}
	for _, tt := range tests {
		t.Run(tt.req.String()+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Allows(&Principal{Role: tt.role}))
		})
	}
}

func TestRequirement_NilPrincipalNeverPasses(t *testing.T) {
	for _, req := range []Requirement{RequireNonDefault, RequireManagerOrAdmin, RequireAdministrator} {
		assert.False(t, req.Allows(nil), req.String())
	}
}

func TestEvaluateLogin(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	leaveStart := NewTimestamp(now.Add(-time.Hour))
	leaveEnd := NewTimestamp(now.Add(time.Hour))

	tests := []struct {
		name string
		p    Principal
		want LoginVerdict
	}{
		{
			name: "unverified is rejected before role is considered",
			p:    Principal{IsVerified: false, Role: RoleAdministrator},
			want: LoginVerdict{Message: MsgNotVerified},
		},
		{
			name: "verified default role awaits confirmation",
			p:    Principal{IsVerified: true, Role: RoleDefault},
			want: LoginVerdict{Message: MsgNotConfirmed},
		},
		{
			name: "verified user on leave",
			p:    Principal{IsVerified: true, Role: RoleUser, TempLeaveStart: leaveStart, TempLeaveEnd: leaveEnd},
			want: LoginVerdict{Message: MsgOnLeave},
		},
		{
			name: "verified user outside leave window",
			p: Principal{
				IsVerified:     true,
				Role:           RoleUser,
				TempLeaveStart: NewTimestamp(now.Add(-48 * time.Hour)),
				TempLeaveEnd:   NewTimestamp(now.Add(-24 * time.Hour)),
			},
			want: LoginVerdict{Accepted: true},
		},
		{
			name: "verified manager without leave",
			p:    Principal{IsVerified: true, Role: RoleManager},
			want: LoginVerdict{Accepted: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateLogin(tt.p, now))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "pending", DecisionPending.String())
	assert.Equal(t, "denied", DecisionDenied.String())
	assert.Equal(t, "allowed", DecisionAllowed.String())
}
