package access

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Paths every user may enter without a permission check.
var publicPaths = map[string]bool{
	"/login":        true,
	"/register":     true,
	"/unauthorized": true,
	"/dashboard":    true,
}

// care_user has its own landing page and is steered away from the
// generic dashboard unconditionally.
const (
	careUserRole    = "care_user"
	careDashboard   = "/care-dashboard"
	unauthorizedURL = "/unauthorized"
)

// Decision is the outcome of evaluating one navigation. A redirect is
// control flow, not a failure.
type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

// permissionDisplayNames maps roles to the localized names shown in
// denial messages.
var permissionDisplayNames = map[string]string{
	"manager_specified": "特定技能管理者",
	"manager_general":   "技能実習管理者",
	"admin":             "システム管理者",
	"manager":           "管理者",
	"user":              "ユーザー",
	"mishima_user":      "ユーザー",
	"care_user":         "介護管理ユーザー",
}

func displayName(role string) string {
	if name, ok := permissionDisplayNames[role]; ok {
		return name
	}
	return role
}

// Check evaluates one navigation for a role against the engine: landing
// redirect first, then the public bypass, then the rule set. Denials
// redirect to the unauthorized page carrying the attempted path, the
// resolved role and a localized message as query parameters.
func (e *Engine) Check(role, path string) Decision {
	if role == careUserRole && (path == "/" || path == "/dashboard") {
		return Decision{Redirect: careDashboard}
	}

	if publicPaths[path] {
		return Decision{Allow: true}
	}

	if e.Allowed(role, path) {
		return Decision{Allow: true}
	}

	q := url.Values{}
	q.Set("from", path)
	q.Set("currentPermission", role)
	q.Set("message", displayName(role)+"はこのページにアクセスできません。")
	return Decision{Redirect: unauthorizedURL + "?" + q.Encode()}
}

// Check evaluates a navigation against the built-in role table.
func Check(role, path string) Decision {
	return DefaultEngine.Check(role, path)
}

// Guard returns navigation middleware that runs before every route: it
// lets the request through, or redirects per the engine's decision. The
// role must already be resolved into the context by the auth middleware
// under roleKey.
func Guard(e *Engine, roleKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(roleKey)
		decision := e.Check(role, c.Request.URL.Path)
		if decision.Allow {
			c.Next()
			return
		}
		c.Redirect(http.StatusFound, decision.Redirect)
		c.Abort()
	}
}
