// Package web serves the browser side: the cookie session, the live catalog
// stream and the photo URLs.
package web

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/blob"
	"github.com/erazemk/remarket/internal/catalog"
)

// DefaultHeartbeat is how often an idle live stream sends a comment line.
const DefaultHeartbeat = 25 * time.Second

// Server holds the dependencies of the browser routes.
type Server struct {
	DB        *sql.DB
	JWTSecret string
	Admins    auth.AllowList
	Hub       *auth.Hub
	Items     catalog.ItemSource
	Blobs     blob.Store
	Heartbeat time.Duration
}

// NewRouter creates the browser router.
func NewRouter(s *Server) http.Handler {
	if s.Heartbeat <= 0 {
		s.Heartbeat = DefaultHeartbeat
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)
	mux.HandleFunc("GET /live", s.Live)
	mux.HandleFunc("GET "+blob.PathPrefix+"{key...}", s.BlobGet)

	return mux
}
