package access

import (
	"path"
	"strings"
)

// Policy is the protection a route requires.
type Policy int

const (
	// PolicyNone renders unconditionally.
	PolicyNone Policy = iota
	// PolicyRequireAuth needs a signed-in identity.
	PolicyRequireAuth
	// PolicyRequireEntitlement needs a signed-in identity that is an
	// administrator, subscribed, or within its trial.
	PolicyRequireEntitlement
)

// String returns the policy name used in logs and metrics labels.
func (p Policy) String() string {
	switch p {
	case PolicyNone:
		return "none"
	case PolicyRequireAuth:
		return "require_auth"
	case PolicyRequireEntitlement:
		return "require_entitlement"
	default:
		return "unknown"
	}
}

// Variant selects how an expired trial is enforced.
type Variant int

const (
	// VariantNavigation redirects to the profile page.
	VariantNavigation Variant = iota
	// VariantOverlay blocks the overlay routes with a full-screen notice
	// and leaves the other routes alone.
	VariantOverlay
)

func (v Variant) String() string {
	if v == VariantOverlay {
		return "overlay"
	}
	return "navigation"
}

// ParseVariant maps "overlay" to VariantOverlay and anything else to
// VariantNavigation.
func ParseVariant(s string) Variant {
	if strings.EqualFold(strings.TrimSpace(s), "overlay") {
		return VariantOverlay
	}
	return VariantNavigation
}

// Redirect targets and the public landing page.
const (
	LandingRoute = "/"
	AuthRoute    = "/auth"
	ProfileRoute = "/perfil"
)

var (
	defaultPublic     = []string{LandingRoute, AuthRoute}
	defaultAuthOnly   = []string{ProfileRoute, "/planos"}
	defaultProtected  = []string{"/dashboard", "/despesas", "/receitas", "/categorias", "/controle-contas", "/relatorios"}
	defaultOverlaySet = []string{"/despesas", "/receitas", "/controle-contas"}
)

// Routes maps route paths to policies. A route matches a registered path
// exactly or as a parent segment ("/despesas" covers "/despesas/42").
// Unregistered routes require authentication.
type Routes struct {
	policies map[string]Policy
	overlay  map[string]struct{}
}

// DefaultRoutes returns the application's route table.
func DefaultRoutes() Routes {
	return NewRoutes(defaultPublic, defaultAuthOnly, defaultProtected, defaultOverlaySet)
}

// NewRoutes builds a route table. overlay must be a subset of protected.
func NewRoutes(public, authOnly, protected, overlay []string) Routes {
	r := Routes{
		policies: make(map[string]Policy),
		overlay:  make(map[string]struct{}),
	}
	for _, p := range public {
		r.policies[clean(p)] = PolicyNone
	}
	for _, p := range authOnly {
		r.policies[clean(p)] = PolicyRequireAuth
	}
	for _, p := range protected {
		r.policies[clean(p)] = PolicyRequireEntitlement
	}
	for _, p := range overlay {
		r.overlay[clean(p)] = struct{}{}
	}
	return r
}

// Policy returns the policy of route.
func (r Routes) Policy(route string) Policy {
	if p, ok := r.lookup(route); ok {
		return r.policies[p]
	}
	return PolicyRequireAuth
}

// Overlay reports whether route belongs to the overlay subset.
func (r Routes) Overlay(route string) bool {
	for p := range ancestors(clean(route)) {
		if _, ok := r.overlay[p]; ok {
			return true
		}
	}
	return false
}

// IsLanding reports whether route is the public landing page.
func IsLanding(route string) bool {
	return clean(route) == LandingRoute
}

func (r Routes) lookup(route string) (string, bool) {
	for p := range ancestors(clean(route)) {
		if _, ok := r.policies[p]; ok {
			return p, true
		}
	}
	return "", false
}

// ancestors yields p and each parent path, deepest first, stopping before
// the root unless p is the root itself.
func ancestors(p string) func(yield func(string) bool) {
	return func(yield func(string) bool) {
		if p == "/" {
			yield(p)
			return
		}
		for p != "/" && p != "." {
			if !yield(p) {
				return
			}
			p = path.Dir(p)
		}
	}
}

func clean(route string) string {
	route, _, _ = strings.Cut(route, "?")
	route, _, _ = strings.Cut(route, "#")
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return path.Clean(route)
}
