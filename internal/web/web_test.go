package web

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/remarket/internal/auth"
	"github.com/erazemk/remarket/internal/blob"
	"github.com/erazemk/remarket/internal/catalog"
	"github.com/erazemk/remarket/internal/db"
	"github.com/erazemk/remarket/internal/model"
	"github.com/erazemk/remarket/internal/store"
)

const (
	testSecret   = "web-secret"
	adminEmail   = "admin@example.com"
	guestEmail   = "guest@example.com"
	testPassword = "password123"
)

type testEnv struct {
	server  *httptest.Server
	catalog *catalog.Catalog
	blobs   *blob.MemoryStore
	hub     *auth.Hub
	db      *sql.DB
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	ctx := context.Background()

	for _, email := range []string{adminEmail, guestEmail} {
		hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
		require.NoError(t, err)
		_, err = store.CreateAccount(ctx, database, email, "", string(hash))
		require.NoError(t, err)
	}

	feed := catalog.NewFeed(database, nil)
	t.Cleanup(feed.Close)
	cat := catalog.New(database, feed, 3)
	hub := auth.NewHub(database, testSecret)
	blobs := blob.NewMemoryStore("")

	server := httptest.NewServer(NewRouter(&Server{
		DB:        database,
		JWTSecret: testSecret,
		Admins:    auth.NewAllowList([]string{adminEmail}),
		Hub:       hub,
		Items:     feed,
		Blobs:     blobs,
	}))
	t.Cleanup(server.Close)

	return &testEnv{server: server, catalog: cat, blobs: blobs, hub: hub, db: database}
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func (e *testEnv) login(t *testing.T, c *http.Client, email string) *http.Response {
	t.Helper()
	resp, err := c.PostForm(e.server.URL+"/login", url.Values{"email": {email}, "password": {testPassword}})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) addItem(t *testing.T, title string, qty int) *model.Item {
	t.Helper()
	it, err := e.catalog.Create(context.Background(), model.ItemInput{
		Title: title, Price: decimal.NewFromInt(10), Quantity: qty,
	}, adminEmail)
	require.NoError(t, err)
	return it
}

// event mirrors liveView with the auth state as text.
type event struct {
	Session    *model.UserSession `json:"session"`
	AuthState  string             `json:"authState"`
	Error      string             `json:"error"`
	Loaded     bool               `json:"loaded"`
	Categories []string           `json:"categories"`
	Items      []model.Item       `json:"items"`
}

type stream struct {
	events chan event
}

func (e *testEnv) openLive(t *testing.T, c *http.Client, query string) *stream {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, "GET", e.server.URL+"/live"+query, nil)
	require.NoError(t, err)
	resp, err := c.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	s := &stream{events: make(chan event, 64)}
	go func() {
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data: ")
			if !ok {
				continue
			}
			var ev event
			if json.Unmarshal([]byte(data), &ev) == nil {
				s.events <- ev
			}
		}
		close(s.events)
	}()
	return s
}

func (s *stream) waitFor(t *testing.T, what string, pred func(event) bool) event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				t.Fatalf("stream closed waiting for %s", what)
			}
			if pred(ev) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func titles(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

func TestLiveAnonymousSeesAvailableOnly(t *testing.T) {
	env := setup(t)
	env.addItem(t, "Cadeira", 1)
	env.addItem(t, "Vendido", 0)

	s := env.openLive(t, env.client(t), "")
	ev := s.waitFor(t, "anonymous view", func(ev event) bool {
		return ev.AuthState == "anonymous" && ev.Loaded
	})
	assert.Nil(t, ev.Session)
	assert.Equal(t, []string{"Cadeira"}, titles(ev.Items))
	assert.Equal(t, []string{catalog.AllCategories, model.DefaultCategory}, ev.Categories)

	env.addItem(t, "Mesa", 2)
	ev = s.waitFor(t, "new item", func(ev event) bool { return len(ev.Items) == 2 })
	assert.Equal(t, []string{"Mesa", "Cadeira"}, titles(ev.Items))
}

func TestLiveFilterFromQuery(t *testing.T) {
	env := setup(t)
	env.addItem(t, "Cadeira azul", 1)
	env.addItem(t, "Mesa", 1)

	s := env.openLive(t, env.client(t), "?q=AZUL")
	ev := s.waitFor(t, "filtered view", func(ev event) bool { return ev.Loaded && ev.AuthState == "anonymous" })
	assert.Equal(t, []string{"Cadeira azul"}, titles(ev.Items))
}

func TestLiveAdminAfterLogin(t *testing.T) {
	env := setup(t)
	env.addItem(t, "Vendido", 0)
	c := env.client(t)

	resp := env.login(t, c, adminEmail)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s := env.openLive(t, c, "?status=sold")
	ev := s.waitFor(t, "admin view", func(ev event) bool { return ev.AuthState == "authenticated" && ev.Loaded })
	require.NotNil(t, ev.Session)
	assert.Equal(t, adminEmail, ev.Session.Email)
	assert.Equal(t, []string{"Vendido"}, titles(ev.Items))

	// Logging out reaches the open view of the same browser.
	resp, err := c.Post(env.server.URL+"/logout", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ev = s.waitFor(t, "signed out", func(ev event) bool { return ev.AuthState == "anonymous" })
	assert.Empty(t, ev.Items)
}

func TestLiveDeniesNonAdmin(t *testing.T) {
	env := setup(t)
	c := env.client(t)

	resp := env.login(t, c, guestEmail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var token string
	for _, ck := range resp.Cookies() {
		if ck.Name == tokenCookie {
			token = ck.Value
		}
	}
	require.NotEmpty(t, token)

	s := env.openLive(t, c, "")
	ev := s.waitFor(t, "access denied", func(ev event) bool { return ev.Error != "" })
	assert.Equal(t, "anonymous", ev.AuthState)
	assert.Nil(t, ev.Session)
	assert.Equal(t, catalog.ErrAccessDenied.Error(), ev.Error)

	require.Eventually(t, func() bool {
		_, err := auth.ResolveToken(context.Background(), env.db, testSecret, token)
		return err != nil
	}, 5*time.Second, 20*time.Millisecond, "denied token is revoked")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := setup(t)
	resp, err := env.client(t).PostForm(env.server.URL+"/login", url.Values{"email": {adminEmail}, "password": {"nope-nope"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBlobGet(t *testing.T) {
	env := setup(t)
	_, err := env.blobs.Put(context.Background(), "items/1_0_abc.jpg", []byte("jpeg-bytes"), "image/jpeg", nil)
	require.NoError(t, err)

	resp, err := http.Get(env.server.URL + "/blobs/items/1_0_abc.jpg")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(body))

	resp, err = http.Get(env.server.URL + "/blobs/items/missing.jpg")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
