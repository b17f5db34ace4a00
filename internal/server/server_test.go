package server

import (
	"context"
	"ctchen222/item-registry/internal/api/controller"
	"ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/api/service"
	"ctchen222/item-registry/internal/db"
	"ctchen222/item-registry/internal/events"
	"ctchen222/item-registry/internal/hub"
	"ctchen222/item-registry/internal/validator"
	"ctchen222/item-registry/pkg/proto"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const password = "Qwerty!23"

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Extras  json.RawMessage `json:"extras"`
}

type testServer struct {
	*httptest.Server
	t *testing.T
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	pool, err := db.OpenAndMigrate(ctx, ":memory:")
	require.NoError(t, err)

	users := repository.NewUserRepository(pool, 5*time.Second)
	items := repository.NewItemRepository(pool, 5*time.Second)
	sessionRepo := repository.NewSessionRepository(pool, 5*time.Second)

	h := hub.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(hubDone)
	}()

	key := []byte("server-test-key")
	opts := []service.Option{service.WithLogger(logger)}
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	sessions := service.NewSessionTokenService(key, 30*time.Minute, sessionRepo, opts...)
	transfers := service.NewTransferTokenService(key, users, items, opts...)
	guard := service.NewAuthGuard(users, hasher, sessions, opts...)
	userSvc := service.NewUserService(users, hasher, validator.DefaultPolicy{}, guard, sessions, opts...)
	itemSvc := service.NewItemService(items, transfers, h, "http://registry.test", opts...)

	srv := NewServer(h, guard,
		controller.NewUserController(userSvc, logger),
		controller.NewItemController(itemSvc, logger),
		logger,
	)
	ts := httptest.NewServer(srv.Engine())
	t.Cleanup(func() {
		cancel()
		<-hubDone
		ts.Close()
		_ = pool.Close()
	})
	return &testServer{Server: ts, t: t}
}

func (s *testServer) call(method, path, token string, body any) (int, envelope) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (s *testServer) message(env envelope) string {
	s.t.Helper()
	var extras struct {
		Message string `json:"message"`
	}
	require.NoError(s.t, json.Unmarshal(env.Extras, &extras))
	return extras.Message
}

func (s *testServer) login(username string) string {
	s.t.Helper()
	status, env := s.call(http.MethodPost, "/api/v1/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, status)
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(s.t, json.Unmarshal(env.Extras, &resp))
	require.Equal(s.t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func (s *testServer) itemTitles(token string) []string {
	s.t.Helper()
	status, env := s.call(http.MethodGet, "/api/v1/items", token, nil)
	require.Equal(s.t, http.StatusOK, status)
	var extras struct {
		List []struct {
			Title string `json:"title"`
		} `json:"list"`
	}
	require.NoError(s.t, json.Unmarshal(env.Extras, &extras))
	titles := []string{}
	for _, it := range extras.List {
		titles = append(titles, it.Title)
	}
	return titles
}

// transferPath keeps only the path and query of a minted link so it can be
// replayed against the test server.
func transferPath(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, service.TransferPath, u.Path)
	require.NotEmpty(t, u.Query().Get(service.TransferKeyParam))
	return u.RequestURI()
}

func TestOwnershipTransferScenario(t *testing.T) {
	s := newTestServer(t)

	for _, name := range []string{"alice", "bob"} {
		status, _ := s.call(http.MethodPost, "/api/v1/registration", "", map[string]string{"username": name, "password": password})
		require.Equal(t, http.StatusCreated, status)
	}
	status, env := s.call(http.MethodPost, "/api/v1/registration", "", map[string]string{"username": "alice", "password": password})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username 'alice' has been already registered by another user", s.message(env))

	aliceToken := s.login("alice")
	bobToken := s.login("bob")

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/events?access_token=" + url.QueryEscape(bobToken)
	feed, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer feed.Close()
	require.NoError(t, feed.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame proto.ServerToClientMessage
	require.NoError(t, feed.ReadJSON(&frame))
	require.Equal(t, proto.TypeConnected, frame.Type)

	status, env = s.call(http.MethodPost, "/api/v1/items/new", aliceToken, map[string]string{"title": "lamp"})
	require.Equal(t, http.StatusCreated, status)
	var lamp struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &lamp))

	status, env = s.call(http.MethodPost, "/api/v1/send", aliceToken, map[string]any{"item_id": lamp.ID, "achiever": "bob"})
	require.Equal(t, http.StatusOK, status)
	var sent struct {
		Link string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &sent))
	path := transferPath(t, sent.Link)

	require.NoError(t, feed.ReadJSON(&frame))
	assert.Equal(t, events.TypeTransferOffered, frame.Type)
	var offer events.TransferOfferedPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &offer))
	assert.Equal(t, "lamp", offer.ItemTitle)
	assert.Equal(t, "alice", offer.From)

	status, env = s.call(http.MethodGet, path, aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Sorry, this link isn't for you", s.message(env))

	status, env = s.call(http.MethodGet, path, bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "You've just obtained lamp", s.message(env))

	status, env = s.call(http.MethodGet, path, bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Item lamp is already yours", s.message(env))

	assert.Empty(t, s.itemTitles(aliceToken))
	assert.Equal(t, []string{"lamp"}, s.itemTitles(bobToken))

	status, _ = s.call(http.MethodGet, "/api/v1/get?transfer_key="+url.QueryEscape(bobToken), bobToken, nil)
	assert.Equal(t, http.StatusBadRequest, status, "a session token is not a transfer key")

	s.login("alice")
	status, _ = s.call(http.MethodGet, "/api/v1/items", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "a superseded token must be rejected")
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	s := newTestServer(t)

	status, env := s.call(http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"usernames":[]}`, string(env.Extras))

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/items"},
		{http.MethodPost, "/api/v1/items/new"},
		{http.MethodDelete, "/api/v1/items/1"},
		{http.MethodPost, "/api/v1/send"},
		{http.MethodGet, "/api/v1/get?transfer_key=x"},
		{http.MethodGet, "/api/v1/events"},
	} {
		status, _ := s.call(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, status, "%s %s", route.method, route.path)
	}

	status, _ = s.call(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
