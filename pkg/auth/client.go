package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/fintrack/pkg/broadcast"
	"github.com/dmitrymomot/fintrack/pkg/jwt"
	"github.com/dmitrymomot/fintrack/pkg/logger"
	"github.com/dmitrymomot/fintrack/pkg/scheduler"
)

const refreshTimer = "auth.refresh"

// Client talks to a GoTrue-compatible auth provider on behalf of one
// client and publishes auth state changes to subscribers.
type Client struct {
	cfg      Config
	baseURL  string
	http     *http.Client
	store    SessionStore
	key      string
	sched    *scheduler.Scheduler
	verifier *jwt.Service
	events   *broadcast.MemoryBroadcaster[Event]
	logger   *slog.Logger

	mu      sync.Mutex
	current *Session
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for auth API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithSessionStore persists the session under key.
func WithSessionStore(store SessionStore, key string) Option {
	return func(c *Client) {
		if store != nil {
			c.store = store
			c.key = key
		}
	}
}

// WithScheduler sets the scheduler that runs the token refresh timer.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.sched = s
		}
	}
}

// WithLogger sets the logger; nil keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient validates cfg and builds a client. Without a session store the
// session lives in memory only.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrMissingURL
	}
	if cfg.AnonKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		http:    &http.Client{Timeout: cfg.Timeout},
		store:   NewMemoryStore(),
		key:     "default",
		events:  broadcast.NewMemoryBroadcaster[Event](16, broadcast.WithLatestWins()),
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sched == nil {
		c.sched = scheduler.New(nil)
	}
	if cfg.JWTSecret != "" {
		v, err := jwt.NewFromString(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		c.verifier = v
	}
	c.logger = c.logger.With(logger.Component("auth"))

	return c, nil
}

// Subscribe streams auth state changes until ctx is done.
func (c *Client) Subscribe(ctx context.Context) broadcast.Subscriber[Event] {
	return c.events.Subscribe(ctx)
}

// GetSession returns the current session, loading a persisted one if
// needed. An expired persisted session is refreshed when it carries a
// refresh token and discarded otherwise. It returns nil without error when
// there is no session.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	if current != nil {
		return current, nil
	}

	s, err := c.store.Load(ctx, c.key)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load persisted session: %w", err)
	}

	if s.Expired(c.sched.Now()) {
		if s.RefreshToken == "" {
			_ = c.store.Delete(ctx, c.key)
			return nil, nil
		}
		return c.refresh(ctx, s.RefreshToken)
	}

	c.setSession(s)
	return s, nil
}

// GetUser fetches the identity of the current session from the provider.
func (c *Client) GetUser(ctx context.Context) (*Identity, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}

	var u userResponse
	if err := c.do(ctx, http.MethodGet, "/user", s.AccessToken, nil, &u); err != nil {
		return nil, mapSessionError(err)
	}
	id := u.identity()
	return &id, nil
}

// SignInWithPassword authenticates with email and password and publishes
// EventSignedIn.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var tr tokenResponse
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=password", "", body, &tr); err != nil {
		return nil, mapCredentialError(err)
	}

	s, err := c.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, s); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "signed in", logger.UserID(s.Identity.ID))
	c.publish(ctx, Event{Type: EventSignedIn, Session: s})
	return s, nil
}

// SignUp registers a new identity. When the provider requires email
// confirmation no session is created and ErrConfirmationPending is
// returned.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Session, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}

	var sr signUpResponse
	if err := c.do(ctx, http.MethodPost, "/signup", "", body, &sr); err != nil {
		return nil, mapCredentialError(err)
	}
	if sr.AccessToken == "" {
		return nil, ErrConfirmationPending
	}

	s, err := c.sessionFrom(sr.tokenResponse)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, s); err != nil {
		return nil, err
	}

	c.publish(ctx, Event{Type: EventSignedIn, Session: s})
	return s, nil
}

// SignOut revokes the session at the provider and always clears it
// locally, publishing EventSignedOut.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	c.sched.Cancel(refreshTimer)

	if s != nil {
		if err := c.do(ctx, http.MethodPost, "/logout", s.AccessToken, nil, nil); err != nil {
			c.logger.WarnContext(ctx, "remote sign-out failed", logger.Error(err))
		}
	}
	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.WarnContext(ctx, "failed to delete persisted session", logger.Error(err))
	}

	c.publish(ctx, Event{Type: EventSignedOut})
	return nil
}

// RefreshSession exchanges the refresh token for a new session and
// publishes EventTokenRefreshed. A rejected refresh token signs the client
// out.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()

	if s == nil {
		loaded, err := c.store.Load(ctx, c.key)
		if err != nil {
			return nil, ErrNoSession
		}
		s = loaded
	}
	if s.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	return c.refresh(ctx, s.RefreshToken)
}

// Close stops auto-refresh and closes every subscription.
func (c *Client) Close() error {
	c.sched.Cancel(refreshTimer)
	return c.events.Close()
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/token?grant_type=refresh_token", "",
		map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		err = mapSessionError(err)
		if errors.Is(err, ErrSessionExpired) {
			_ = c.SignOut(ctx)
		}
		return nil, err
	}

	s, err := c.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	if err := c.persist(ctx, s); err != nil {
		return nil, err
	}

	c.publish(ctx, Event{Type: EventTokenRefreshed, Session: s})
	return s, nil
}

func (c *Client) persist(ctx context.Context, s *Session) error {
	if err := c.store.Save(ctx, c.key, s); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.setSession(s)
	return nil
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()

	if !c.cfg.AutoRefresh || s.RefreshToken == "" {
		return
	}
	delay := max(s.ExpiresAt.Sub(c.sched.Now())-c.cfg.RefreshMargin, 0)
	c.sched.Schedule(refreshTimer, delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		if _, err := c.RefreshSession(ctx); err != nil {
			c.logger.WarnContext(ctx, "automatic token refresh failed", logger.Error(err))
		}
	})
}

func (c *Client) publish(ctx context.Context, e Event) {
	_ = c.events.Broadcast(ctx, broadcast.Message[Event]{Data: e})
}

func (c *Client) sessionFrom(tr tokenResponse) (*Session, error) {
	if tr.AccessToken == "" {
		return nil, errors.Join(ErrProviderError, errors.New("token response without access token"))
	}

	expiresAt, err := c.expiry(tr)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:     tr.User.identity(),
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// expiry prefers the exp claim of the access token; the verifier, when
// configured, also rejects forged tokens.
func (c *Client) expiry(tr tokenResponse) (time.Time, error) {
	var (
		claims *jwt.Claims
		err    error
	)
	if c.verifier != nil {
		claims, err = c.verifier.Parse(tr.AccessToken)
		if err != nil {
			return time.Time{}, errors.Join(ErrInvalidToken, err)
		}
	} else {
		claims, err = jwt.ParseUnverified(tr.AccessToken)
	}
	if err == nil && !claims.Expiry().IsZero() {
		return claims.Expiry(), nil
	}

	switch {
	case tr.ExpiresAt > 0:
		return time.Unix(tr.ExpiresAt, 0), nil
	case tr.ExpiresIn > 0:
		return c.sched.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
	default:
		return time.Time{}, ErrInvalidToken
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if bearer == "" {
		bearer = c.cfg.AnonKey
	}
	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Join(ErrProviderError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Join(ErrProviderError, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

type userResponse struct {
	ID           uuid.UUID      `json:"id"`
	Email        string         `json:"email"`
	CreatedAt    time.Time      `json:"created_at"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userResponse) identity() Identity {
	return Identity{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		Metadata:  u.UserMetadata,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// signUpResponse is a token response when the provider auto-confirms and a
// bare user object otherwise.
type signUpResponse struct {
	tokenResponse
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

type errorResponse struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	var er errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&er); err == nil {
		apiErr.Code = firstNonEmpty(er.ErrorCode, er.Error)
		apiErr.Message = firstNonEmpty(er.Msg, er.ErrorDescription, er.Message)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func mapCredentialError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == "email_not_confirmed":
		return errors.Join(ErrEmailNotConfirmed, err)
	case apiErr.Code == "user_already_exists" || apiErr.Code == "email_exists":
		return errors.Join(ErrUserAlreadyExists, err)
	case apiErr.Code == "weak_password":
		return errors.Join(ErrWeakPassword, err)
	case apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized:
		return errors.Join(ErrInvalidCredentials, err)
	default:
		return errors.Join(ErrProviderError, err)
	}
}

func mapSessionError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return errors.Join(ErrSessionExpired, err)
	default:
		return errors.Join(ErrProviderError, err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// HealthURL is the reachability endpoint of the provider at baseURL.
func HealthURL(baseURL string) string {
	u, err := url.JoinPath(baseURL, "auth", "v1", "health")
	if err != nil {
		return strings.TrimRight(baseURL, "/") + "/auth/v1/health"
	}
	return u
}
