package profile

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/fintrack/pkg/auth"
	"github.com/dmitrymomot/fintrack/pkg/logger"
)

// DefaultMaxAttempts bounds profile creation attempts per sign-in.
const DefaultMaxAttempts = 3

// Resolver finds or creates the profile of a signed-in identity.
type Resolver struct {
	repo        Repository
	maxAttempts int
	logger      *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxAttempts bounds profile creation attempts. Non-positive values keep
// DefaultMaxAttempts.
func WithMaxAttempts(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewResolver resolves profiles stored in repo.
func NewResolver(repo Repository, opts ...ResolverOption) *Resolver {
	r := &Resolver{repo: repo, maxAttempts: DefaultMaxAttempts, logger: logger.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("profile"))
	return r
}

// Resolve returns the profile of id, creating it from the identity's
// display_name metadata when missing. Creation is attempted up to the
// configured number of times; ErrCreateFailed means the caller should ask
// the user for a display name.
func (r *Resolver) Resolve(ctx context.Context, id auth.Identity) (*Profile, error) {
	p, err := r.repo.Get(ctx, id.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		r.logger.WarnContext(ctx, "profile lookup failed", logger.UserID(id.ID), logger.Error(err))
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, errors.Join(ErrCreateFailed, ctx.Err())
		}

		p := &Profile{UserID: id.ID, DisplayName: id.DisplayName()}
		err := r.repo.Create(ctx, p)
		if err == nil {
			return p, nil
		}
		if errors.Is(err, ErrAlreadyExists) {
			if existing, getErr := r.repo.Get(ctx, id.ID); getErr == nil {
				return existing, nil
			}
		}

		lastErr = err
		r.logger.WarnContext(ctx, "profile creation failed",
			logger.UserID(id.ID), logger.RetryCount(attempt), logger.Error(err))
	}

	return nil, errors.Join(ErrCreateFailed, lastErr)
}

// SetDisplayName stores name on the profile of id, creating the profile if
// needed.
func (r *Resolver) SetDisplayName(ctx context.Context, id auth.Identity, name string) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyDisplayName
	}

	err := r.repo.UpdateDisplayName(ctx, id.ID, name)
	if errors.Is(err, ErrNotFound) {
		p := &Profile{UserID: id.ID, DisplayName: name}
		if err := r.repo.Create(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	return r.repo.Get(ctx, id.ID)
}
