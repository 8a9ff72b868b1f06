package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessPage(t *testing.T) {
	tests := []struct {
		role string
		path string
		want bool
	}{
		{"admin", "/billing", true},
		{"admin", "/anything/at/all", true},
		{"admin", "/", true},

		{"user", "/chat", true},
		{"user", "/student-list", true},
		{"user", "/student-detail/123", true},
		{"user", "/student-detail/123/extra", false},
		{"user", "/student-detail/", true}, // empty segment still matches :id
		{"user", "/billing", true},
		{"user", "/building-list", false},
		{"user", "/special-student-list", false},

		{"manager", "/chat", true},
		{"manager", "/student-list", false},
		{"manager", "/unauthorized", true},

		{"manager_specified", "/special-student-list", true},
		{"manager_specified", "/student-list", false},
		{"manager_specified", "/student-detail/42", true},

		{"manager_general", "/student-list", true},
		{"manager_general", "/room-detail/9", true},
		{"manager_general", "/special-student-list", false},

		{"mishima_user", "/care-dashboard", true},
		{"mishima_user", "/elderly-detail/7", true},
		{"mishima_user", "/billing", false},

		{"care_user", "/care-dashboard", true},
		{"care_user", "/elderly-list", true},
		{"care_user", "/billing", false},
		{"care_user", "/student-list", false},

		{"unknown_role", "/chat", false},
		{"", "/chat", false},
	}
	for _, tt := range tests {
		t.Run(tt.role+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccessPage(tt.role, tt.path))
		})
	}
}

func TestAllowedIgnoresQueryString(t *testing.T) {
	assert.True(t, CanAccessPage("user", "/student-detail/123?tab=billing"))
	assert.True(t, CanAccessPage("user", "/chat?room=5"))
	assert.False(t, CanAccessPage("user", "/building-list?force=1"))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, MatchWildcard, classify("*"))
	assert.Equal(t, MatchTemplate, classify("/student-detail/:id"))
	assert.Equal(t, MatchExact, classify("/chat"))
	assert.Equal(t, MatchExact, classify("/colon:but-not-a-segment"))
}

func TestNewEngineWithCustomTable(t *testing.T) {
	e := NewEngine(map[string][]string{
		"viewer": {"/reports", "/reports/:year/:month"},
	})

	assert.True(t, e.Allowed("viewer", "/reports"))
	assert.True(t, e.Allowed("viewer", "/reports/2026/08"))
	assert.False(t, e.Allowed("viewer", "/reports/2026"))
	assert.False(t, e.Allowed("viewer", "/admin"))
	assert.False(t, e.Allowed("editor", "/reports"))
}
