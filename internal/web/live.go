package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/remarket/internal/catalog"
	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
)

// liveView is one event of the live stream.
type liveView struct {
	Session    *model.UserSession `json:"session"`
	AuthState  catalog.AuthState  `json:"authState"`
	Error      string             `json:"error,omitempty"`
	Loaded     bool               `json:"loaded"`
	Categories []string           `json:"categories"`
	Items      []model.Item       `json:"items"`
}

func render(c *catalog.Controller, f catalog.Filter) liveView {
	fr := c.Frame(f)
	v := liveView{
		Session:    fr.Session,
		AuthState:  fr.State,
		Loaded:     fr.Loaded,
		Categories: fr.Categories,
		Items:      fr.Items,
	}
	if fr.Err != nil {
		v.Error = fr.Err.Error()
	}
	if v.Items == nil {
		v.Items = []model.Item{}
	}
	return v
}

// Live handles GET /live?q=&category=&status= as a Server-Sent Events
// stream. Each connection runs its own controller; an event is sent
// whenever what the viewer sees changes. Errors are sent once.
func (s *Server) Live(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	rc.SetWriteDeadline(time.Time{})

	sid := browserSession(w, r)
	ctrl := catalog.NewController(s.Items, s.Hub.Source(r.Context(), sid, sessionToken(r)), s.Admins)

	changed := make(chan struct{}, 1)
	ctrl.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	ctrl.Start()
	defer ctrl.Close()

	metrics.LiveViews.Inc()
	defer metrics.LiveViews.Dec()

	q := r.URL.Query()
	filter := catalog.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Status:   catalog.ParseStatus(q.Get("status")),
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(s.Heartbeat)
	defer heartbeat.Stop()

	var last []byte
	send := func() error {
		v := render(ctrl, filter)
		if v.Error != "" {
			ctrl.DismissError()
		}
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding live view: %w", err)
		}
		if bytes.Equal(data, last) {
			return nil
		}
		last = data
		if _, err := fmt.Fprintf(w, "event: catalog\ndata: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(); err != nil {
		slog.Warn("live stream failed", "error", err)
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			if err := send(); err != nil {
				slog.Debug("live stream closed", "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
