package auth

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdministrator, ParseRole("administrator"))
	assert.Equal(t, RoleUser, ParseRole(" USER "))
	assert.Equal(t, RoleDefault, ParseRole("superuser"))
	assert.Equal(t, RoleDefault, ParseRole(""))
}

func TestRole_Rank(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		assert.Less(t, roles[i-1].Rank(), roles[i].Rank(), "%s should rank below %s", roles[i-1], roles[i])
	}
}

func TestPrincipal_OnLeave(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	start := NewTimestamp(now.Add(-24 * time.Hour))
	end := NewTimestamp(now.Add(24 * time.Hour))

	tests := []struct {
		name string
		p    Principal
		want bool
	}{
		{name: "inside window", p: Principal{TempLeaveStart: start, TempLeaveEnd: end}, want: true},
		{name: "before window", p: Principal{TempLeaveStart: NewTimestamp(now.Add(time.Hour)), TempLeaveEnd: end}},
		{name: "after window", p: Principal{TempLeaveStart: start, TempLeaveEnd: NewTimestamp(now.Add(-time.Hour))}},
		{name: "end is exclusive", p: Principal{TempLeaveStart: start, TempLeaveEnd: NewTimestamp(now)}},
		{name: "start is inclusive", p: Principal{TempLeaveStart: NewTimestamp(now), TempLeaveEnd: end}, want: true},
		{name: "unset window", p: Principal{}},
		{name: "only start set", p: Principal{TempLeaveStart: start}},
		{name: "only end set counts from the epoch", p: Principal{TempLeaveEnd: end}, want: true},
		{name: "only end set, already back", p: Principal{TempLeaveEnd: NewTimestamp(now.Add(-time.Hour))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.OnLeave(now))
		})
	}
}

func TestPrincipal_IsLocked(t *testing.T) {
	assert.False(t, Principal{FailedLoginAttempts: 2}.IsLocked())
	assert.True(t, Principal{FailedLoginAttempts: 3}.IsLocked())
}

func TestPrincipal_DecodesAPIPayload(t *testing.T) {
	payload := `{
		"userid": 42,
		"userType": "ADMINISTRATOR",
		"username": "jdoe0324",
		"email": "jdoe@example.com",
		"firstName": "Jane",
		"lastName": "Doe",
		"birthday": "1990-05-01",
		"isVerified": true,
		"isActive": true,
		"joinDate": 1700000000000,
		"failedLoginAttempts": 1,
		"tempLeaveStart": "2024-03-01T00:00:00",
		"tempLeaveEnd": null
	}`

	var p Principal
	require.NoError(t, json.Unmarshal([]byte(payload), &p))
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, RoleAdministrator, p.Role)
	assert.Equal(t, "1990-05-01", p.Birthday.DateString())
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), p.JoinDate.Time)
	assert.Equal(t, 2024, p.TempLeaveStart.Year())
	assert.True(t, p.TempLeaveEnd.IsZero())
	assert.Equal(t, "Jane Doe", p.DisplayName())
}

func TestPrincipal_UnrecognisedWireRoleIsDefault(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := map[string]string{
		"unknown":    `{"userid":5,"userType":"SUPERUSER","isVerified":true}`,
		"lowercase":  `{"userid":5,"userType":"admin","isVerified":true}`,
		"null":       `{"userid":5,"userType":null,"isVerified":true}`,
		"missing":    `{"userid":5,"isVerified":true}`,
		"not string": `{"userid":5,"userType":3,"isVerified":true}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			var p Principal
			require.NoError(t, json.Unmarshal([]byte(payload), &p))

			assert.True(t, p.IsDefault())
			assert.Equal(t, LoginVerdict{Message: MsgNotConfirmed}, EvaluateLogin(p, now))
			for _, req := range []Requirement{RequireNonDefault, RequireManagerOrAdmin, RequireAdministrator} {
				assert.False(t, req.Allows(&p), req.String())
			}
		})
	}
}

func TestRole_UnmarshalNormalizesCase(t *testing.T) {
	var p Principal
	require.NoError(t, json.Unmarshal([]byte(`{"userType":" manager "}`), &p))
	assert.Equal(t, RoleManager, p.Role)
	assert.False(t, p.IsDefault())
}

func TestRole_Valid(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, r.Valid(), string(r))
	}
	assert.False(t, Role("SUPERUSER").Valid())
	assert.False(t, Role("").Valid())
}

func TestTimestamp_RejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`true`), &ts))
}

func TestTokenState_String(t *testing.T) {
	assert.Equal(t, "unresolved", TokenUnresolved.String())
	assert.Equal(t, "resolving", TokenResolving.String())
	assert.Equal(t, "ready", TokenReady.String())
	assert.Equal(t, "unavailable", TokenUnavailable.String())
}
