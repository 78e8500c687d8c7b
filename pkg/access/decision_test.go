package access_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fintrack/pkg/access"
	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/subscription"
)

var created = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func identity(email string) *auth.Identity {
	return &auth.Identity{ID: uuid.New(), Email: email, CreatedAt: created}
}

func input(route string, id *auth.Identity, now time.Time) access.Input {
	return access.Input{
		Route:          route,
		Variant:        access.VariantNavigation,
		Routes:         access.DefaultRoutes(),
		LoadingTimeout: 15 * time.Second,
		Identity:       id,
		Now:            now,
	}
}

func TestDecide_Rules(t *testing.T) {
	t.Parallel()

	inTrial := created.Add(24 * time.Hour)
	expired := created.Add(96 * time.Hour)
	subscribed := subscription.Status{Subscribed: true}

	tests := []struct {
		name   string
		mutate func(*access.Input)
		want   access.State
	}{
		{
			name:   "loading within timeout",
			mutate: func(in *access.Input) { in.Loading, in.Elapsed = true, 5*time.Second },
			want:   access.StateLoading,
		},
		{
			name:   "loading past timeout with session",
			mutate: func(in *access.Input) { in.Loading, in.Elapsed = true, 16*time.Second },
			want:   access.StateRedirectToAuth,
		},
		{
			name:   "no identity",
			mutate: func(in *access.Input) { in.Identity = nil },
			want:   access.StateRedirectToAuth,
		},
		{
			name:   "auth-only route with expired trial",
			mutate: func(in *access.Input) { in.Route, in.Now = "/perfil", expired },
			want:   access.StateAllow,
		},
		{
			name:   "public route without identity",
			mutate: func(in *access.Input) { in.Route, in.Identity = "/", nil },
			want:   access.StateAllow,
		},
		{
			name:   "admin with expired trial",
			mutate: func(in *access.Input) { in.Identity, in.Now = identity("empresa@admin.local"), expired },
			want:   access.StateAllow,
		},
		{
			name:   "subscribed with expired trial",
			mutate: func(in *access.Input) { in.Status, in.Now = subscribed, expired },
			want:   access.StateAllow,
		},
		{
			name:   "trial active",
			mutate: func(in *access.Input) { in.Now = inTrial },
			want:   access.StateAllow,
		},
		{
			name:   "trial expired navigation",
			mutate: func(in *access.Input) { in.Now = expired },
			want:   access.StateRedirectToProfile,
		},
		{
			name: "trial expired overlay route",
			mutate: func(in *access.Input) {
				in.Now, in.Variant = expired, access.VariantOverlay
			},
			want: access.StateBlockWithOverlay,
		},
		{
			name: "trial expired overlay variant outside subset",
			mutate: func(in *access.Input) {
				in.Now, in.Variant, in.Route = expired, access.VariantOverlay, "/dashboard"
			},
			want: access.StateAllow,
		},
		{
			name:   "nested protected route",
			mutate: func(in *access.Input) { in.Route, in.Now = "/despesas/42/editar", expired },
			want:   access.StateRedirectToProfile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			in := input("/despesas", identity("ana@example.com"), created)
			tt.mutate(&in)
			assert.Equal(t, tt.want, access.Decide(in).State)
		})
	}
}

func TestDecide_NoSessionRedirectsToAuth(t *testing.T) {
	t.Parallel()

	d := access.Decide(input("/despesas", nil, created))
	assert.Equal(t, access.StateRedirectToAuth, d.State)
	assert.Equal(t, access.AuthRoute, d.Redirect)
}

func TestDecide_LoadingTimeoutFailSafe(t *testing.T) {
	t.Parallel()

	in := input("/despesas", identity("ana@example.com"), created)
	in.Loading = true
	in.Elapsed = 16 * time.Second

	assert.Equal(t, access.StateRedirectToAuth, access.Decide(in).State)
}

func TestDecide_AdminAlwaysAllowed(t *testing.T) {
	t.Parallel()

	routes := []string{"/dashboard", "/despesas", "/receitas", "/categorias", "/controle-contas", "/relatorios"}
	for _, route := range routes {
		for _, v := range []access.Variant{access.VariantNavigation, access.VariantOverlay} {
			in := input(route, identity("contabil@admin.local"), created.AddDate(1, 0, 0))
			in.Variant = v
			assert.Equal(t, access.StateAllow, access.Decide(in).State, "%s %s", route, v)
		}
	}
}

func TestDecide_TrialNotice(t *testing.T) {
	t.Parallel()

	d := access.Decide(input("/dashboard", identity("ana@example.com"), time.Date(2025, 1, 3, 23, 59, 59, 0, time.UTC)))
	require.Equal(t, access.StateAllow, d.State)
	require.NotNil(t, d.Notice)
	assert.Equal(t, 1, d.Notice.DaysRemaining)
	assert.Equal(t, created.Add(72*time.Hour), d.Notice.EndsAt)

	in := input("/dashboard", identity("ana@example.com"), created)
	in.Status = subscription.Status{Subscribed: true}
	assert.Nil(t, access.Decide(in).Notice)
}

func TestRoutes_Policy(t *testing.T) {
	t.Parallel()

	r := access.DefaultRoutes()
	assert.Equal(t, access.PolicyNone, r.Policy("/"))
	assert.Equal(t, access.PolicyNone, r.Policy("/auth?tab=signup"))
	assert.Equal(t, access.PolicyRequireAuth, r.Policy("/perfil"))
	assert.Equal(t, access.PolicyRequireAuth, r.Policy("/unknown"))
	assert.Equal(t, access.PolicyRequireEntitlement, r.Policy("/despesas/"))
	assert.Equal(t, access.PolicyRequireEntitlement, r.Policy("relatorios"))
	assert.True(t, r.Overlay("/receitas/1"))
	assert.False(t, r.Overlay("/dashboard"))
	assert.True(t, access.IsLanding("/"))
	assert.False(t, access.IsLanding("/dashboard"))
}

func TestParseVariant(t *testing.T) {
	t.Parallel()

	assert.Equal(t, access.VariantOverlay, access.ParseVariant("Overlay"))
	assert.Equal(t, access.VariantNavigation, access.ParseVariant(""))
}
