package auth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/pubsub"
	"github.com/erazemk/remarket/internal/store"
)

// Identity is what the sign-in provider reports about the current user.
// A nil *Identity means signed out.
type Identity struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// Session converts the identity into the session shown to the user.
func (id *Identity) Session() *model.UserSession {
	if id == nil {
		return nil
	}
	return model.NewUserSession(id.DisplayName, id.Email, id.PhotoURL)
}

// SessionSource is a stream of identity changes for one browser session.
type SessionSource interface {
	// Subscribe calls fn with the current identity and again on every
	// change. The returned function unsubscribes; once it returns fn is
	// not running and will not be called again.
	Subscribe(fn func(*Identity)) (unsubscribe func())
	// SignOut ends the session.
	SignOut(ctx context.Context) error
}

// Hub keeps one identity stream per browser session id. Login and logout
// publish on the stream and every live view of that browser subscribes to
// it.
type Hub struct {
	db     *sql.DB
	secret string

	mu       sync.Mutex
	sessions map[string]*browserSession
}

type browserSession struct {
	topic *pubsub.Topic[*Identity]
	token string
}

// NewHub creates a hub that validates tokens with secret.
func NewHub(db *sql.DB, secret string) *Hub {
	return &Hub{
		db:       db,
		secret:   secret,
		sessions: make(map[string]*browserSession),
	}
}

// SignIn records token as the current credential of sid and publishes the
// identity it carries.
func (h *Hub) SignIn(sid, token string, id *Identity) {
	h.mu.Lock()
	bs := h.sessionLocked(sid)
	bs.token = token
	h.mu.Unlock()

	bs.topic.Publish(id)
}

// SignOut revokes the current token of sid and tells every view of it that
// it is signed out.
func (h *Hub) SignOut(ctx context.Context, sid string) error {
	h.mu.Lock()
	bs := h.sessionLocked(sid)
	token := bs.token
	bs.token = ""
	h.mu.Unlock()

	if token != "" {
		if claims, err := ValidateToken(h.secret, token); err == nil {
			if err := store.RevokeToken(ctx, h.db, claims.ID, claims.ExpiresAt.Time); err != nil {
				return fmt.Errorf("revoking session token: %w", err)
			}
		}
	}
	bs.topic.Publish(nil)
	return nil
}

// Source returns the identity stream for sid. A stream seen for the first
// time is seeded from token, so a returning browser starts signed in.
func (h *Hub) Source(ctx context.Context, sid, token string) SessionSource {
	h.mu.Lock()
	_, ok := h.sessions[sid]
	h.mu.Unlock()

	if !ok {
		seed := h.resolve(ctx, token)

		h.mu.Lock()
		if _, ok = h.sessions[sid]; !ok {
			bs := h.sessionLocked(sid)
			if seed != nil {
				bs.token = token
			}
			bs.topic.Publish(seed)
		}
		h.mu.Unlock()
	}
	return &source{hub: h, sid: sid}
}

// Sessions returns the number of tracked browser sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) sessionLocked(sid string) *browserSession {
	bs, ok := h.sessions[sid]
	if !ok {
		bs = &browserSession{topic: pubsub.NewTopic[*Identity]()}
		h.sessions[sid] = bs
	}
	return bs
}

// release forgets a signed-out session nobody is watching.
func (h *Hub) release(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	bs, ok := h.sessions[sid]
	if !ok || bs.topic.Len() > 0 {
		return
	}
	if id, _ := bs.topic.Latest(); id == nil {
		delete(h.sessions, sid)
	}
}

func (h *Hub) resolve(ctx context.Context, token string) *Identity {
	if token == "" {
		return nil
	}
	claims, err := ResolveToken(ctx, h.db, h.secret, token)
	if err != nil {
		slog.Debug("session token rejected", "error", err)
		return nil
	}
	return claims.Identity()
}

type source struct {
	hub *Hub
	sid string
}

func (s *source) Subscribe(fn func(*Identity)) func() {
	s.hub.mu.Lock()
	bs := s.hub.sessionLocked(s.sid)
	s.hub.mu.Unlock()

	sub := bs.topic.Subscribe(fn)
	return func() {
		sub.Close()
		s.hub.release(s.sid)
	}
}

func (s *source) SignOut(ctx context.Context) error {
	return s.hub.SignOut(ctx, s.sid)
}
