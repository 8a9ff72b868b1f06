package access

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCareUserLandingRedirect(t *testing.T) {
	for _, path := range []string{"/", "/dashboard"} {
		d := Check("care_user", path)
		assert.False(t, d.Allow, path)
		assert.Equal(t, "/care-dashboard", d.Redirect, path)
	}

	// Other roles keep the generic dashboard.
	d := Check("user", "/dashboard")
	assert.True(t, d.Allow)
	assert.Empty(t, d.Redirect)
}

func TestCheckPublicPathsBypassRules(t *testing.T) {
	for _, path := range []string{"/login", "/register", "/unauthorized", "/dashboard"} {
		d := Check("unknown_role", path)
		assert.True(t, d.Allow, path)
	}
}

func TestCheckDenialRedirectCarriesContext(t *testing.T) {
	d := Check("user", "/building-list")
	require.False(t, d.Allow)

	u, err := url.Parse(d.Redirect)
	require.NoError(t, err)
	assert.Equal(t, "/unauthorized", u.Path)

	q := u.Query()
	assert.Equal(t, "/building-list", q.Get("from"))
	assert.Equal(t, "user", q.Get("currentPermission"))
	assert.Equal(t, "ユーザーはこのページにアクセスできません。", q.Get("message"))
}

func TestCheckDenialUnknownRoleUsesRawRole(t *testing.T) {
	d := Check("intern", "/billing")
	require.False(t, d.Allow)

	u, err := url.Parse(d.Redirect)
	require.NoError(t, err)
	assert.Equal(t, "internはこのページにアクセスできません。", u.Query().Get("message"))
}

func TestGuardMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(role string) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) { c.Set("role", role) })
		r.Use(Guard(DefaultEngine, "role"))
		r.GET("/billing", func(c *gin.Context) { c.Status(http.StatusOK) })
		r.GET("/dashboard", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	t.Run("allowed role passes through", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/billing", nil)
		newRouter("user").ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("denied role is redirected to unauthorized", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/billing", nil)
		newRouter("manager").ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)

		u, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/unauthorized", u.Path)
		assert.Equal(t, "/billing", u.Query().Get("from"))
	})

	t.Run("care user is steered to its own dashboard", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		newRouter("care_user").ServeHTTP(w, req)
		require.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/care-dashboard", w.Header().Get("Location"))
	})
}
