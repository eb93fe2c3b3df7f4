package catalog

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
)

// ErrAccessDenied is raised when a signed-in email is not on the allow-list.
var ErrAccessDenied = errors.New("access denied: this email is not allowed to manage the catalog")

// AuthState is the controller's view of the sign-in status.
type AuthState int

const (
	AuthLoading AuthState = iota
	AuthAuthenticated
	AuthAnonymous
)

func (s AuthState) String() string {
	switch s {
	case AuthAuthenticated:
		return "authenticated"
	case AuthAnonymous:
		return "anonymous"
	default:
		return "loading"
	}
}

// MarshalText encodes the state by name.
func (s AuthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type viewKey struct {
	filter  Filter
	version uint64
	state   AuthState
}

// Controller keeps one viewer's copy of the catalog and session in sync with
// the feed and the sign-in provider.
type Controller struct {
	items    ItemSource
	sessions auth.SessionSource
	allow    auth.AllowList

	mu       sync.Mutex
	started  bool
	closed   bool
	snapshot Snapshot
	loaded   bool
	session  *model.UserSession
	state    AuthState
	err      error
	onChange func()

	unsubItems   func()
	unsubSession func()

	viewKey viewKey
	view    []model.Item
	hasView bool
	catsVer uint64
	cats    []string
	hasCats bool
}

// NewController creates a controller. Nothing is subscribed until Start.
func NewController(items ItemSource, sessions auth.SessionSource, allow auth.AllowList) *Controller {
	return &Controller{items: items, sessions: sessions, allow: allow, state: AuthLoading}
}

// OnChange registers fn to be called after every snapshot or session
// change. It must be set before Start.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start opens one item subscription and one session subscription. Calling
// it again, or after Close, does nothing.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	unsubItems := c.items.Subscribe(c.handleSnapshot)
	unsubSession := c.sessions.Subscribe(c.handleIdentity)

	c.mu.Lock()
	c.unsubItems, c.unsubSession = unsubItems, unsubSession
	closed := c.closed
	c.mu.Unlock()

	// Close raced with Start.
	if closed {
		unsubItems()
		unsubSession()
	}
}

// Close releases both subscriptions. After it returns no handler runs.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubItems, unsubSession := c.unsubItems, c.unsubSession
	c.unsubItems, c.unsubSession = nil, nil
	c.mu.Unlock()

	if unsubItems != nil {
		unsubItems()
	}
	if unsubSession != nil {
		unsubSession()
	}
}

func (c *Controller) handleSnapshot(s Snapshot) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.snapshot, c.loaded = s, true
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (c *Controller) handleIdentity(id *auth.Identity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	denied := false
	switch {
	case id == nil:
		c.session, c.state = nil, AuthAnonymous
	case c.allow.Allowed(id.Email):
		c.session, c.state = id.Session(), AuthAuthenticated
	default:
		// Leave the authenticated state before signing out so no admin
		// view is derived for the denied identity.
		c.session, c.state = nil, AuthAnonymous
		c.err = ErrAccessDenied
		denied = true
	}
	notify := c.onChange
	c.mu.Unlock()

	if denied {
		metrics.AccessDeniedTotal.WithLabelValues("live").Inc()
		slog.Warn("sign-in rejected by allow-list", "email", model.NormalizeEmail(id.Email))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := c.sessions.SignOut(ctx); err != nil {
			slog.Error("failed to sign out denied session", "error", err)
		}
		cancel()
	}

	if notify != nil {
		notify()
	}
}

// State returns the auth state.
func (c *Controller) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the signed-in session, or nil.
func (c *Controller) Session() *model.UserSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsAdmin reports whether the current viewer is an allow-listed admin.
func (c *Controller) IsAdmin() bool {
	return c.State() == AuthAuthenticated
}

// Err returns the pending user-visible error, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DismissError clears the pending error.
func (c *Controller) DismissError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

// Loaded reports whether a snapshot has arrived.
func (c *Controller) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Items returns the full current snapshot.
func (c *Controller) Items() []model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot.Items
}

// View returns the items visible under f. The result is cached: identical
// filter, snapshot and auth state return the same slice.
func (c *Controller) View(f Filter) []model.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(f)
}

func (c *Controller) viewLocked(f Filter) []model.Item {
	key := viewKey{filter: f.normalized(), version: c.snapshot.Version, state: c.state}
	if c.hasView && c.viewKey == key {
		return c.view
	}
	c.view = ApplyFilter(c.snapshot.Items, f, c.state == AuthAuthenticated)
	c.viewKey, c.hasView = key, true
	return c.view
}

// Categories returns the categories of the current snapshot.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categoriesLocked()
}

func (c *Controller) categoriesLocked() []string {
	if c.hasCats && c.catsVer == c.snapshot.Version {
		return slices.Clone(c.cats)
	}
	c.cats = Categories(c.snapshot.Items)
	c.catsVer, c.hasCats = c.snapshot.Version, true
	return slices.Clone(c.cats)
}

// Frame is everything a viewer sees at one instant.
type Frame struct {
	Session    *model.UserSession
	State      AuthState
	Err        error
	Loaded     bool
	Version    uint64
	Categories []string
	Items      []model.Item
}

// Frame returns the session, state, error and items under f, all read
// together so they belong to the same moment.
func (c *Controller) Frame(f Filter) Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Frame{
		Session:    c.session,
		State:      c.state,
		Err:        c.err,
		Loaded:     c.loaded,
		Version:    c.snapshot.Version,
		Categories: c.categoriesLocked(),
		Items:      c.viewLocked(f),
	}
}
