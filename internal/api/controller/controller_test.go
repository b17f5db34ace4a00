package controller

import (
	"ctchen222/item-registry/internal/api/middleware"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/api/service"
	"ctchen222/item-registry/internal/api/service/mocks"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var alice = &models.User{ID: 1, Username: "alice"}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Extras  json.RawMessage `json:"extras"`
}

func message(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	var extras struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(env.Extras, &extras))
	return extras.Message
}

type mockedAPI struct {
	router *gin.Engine
	users  *mocks.MockUserService
	items  *mocks.MockItemService
}

func newMockedAPI(t *testing.T) *mockedAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	guard := mocks.NewMockAuthGuard(ctrl)
	guard.EXPECT().AuthenticateToken(gomock.Any(), "alice-token").Return(alice, nil).AnyTimes()

	m := &mockedAPI{
		router: gin.New(),
		users:  mocks.NewMockUserService(ctrl),
		items:  mocks.NewMockItemService(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := NewUserController(m.users, logger)
	ic := NewItemController(m.items, logger)

	m.router.POST("/registration", uc.Register)
	m.router.POST("/login", uc.Login)
	m.router.GET("/users", uc.ListUsernames)
	authed := m.router.Group("", middleware.RequireUser(guard))
	authed.GET("/items", ic.List)
	authed.POST("/items/new", ic.Create)
	authed.DELETE("/items/:id", ic.Delete)
	authed.POST("/send", ic.Send)
	authed.GET("/get", ic.Receive)
	return m
}

func (m *mockedAPI) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer alice-token")
	w := httptest.NewRecorder()
	m.router.ServeHTTP(w, req)
	return w
}

func TestUserController_Register(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:       "created",
			wantStatus: http.StatusCreated,
		},
		{
			name:        "missing credentials",
			err:         oops.Code("REGISTER_INVALID").Wrap(service.ErrMissingCredentials),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Both username and password required",
		},
		{
			name:        "duplicate",
			err:         oops.With("username", "alice").Wrap(service.ErrDuplicateUsername),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Username 'alice' has been already registered by another user",
		},
		{
			name:        "weak password",
			err:         oops.With("reason", "Weak password: no digit").Wrap(errors.Join(service.ErrPolicyViolation, errors.New("no digit"))),
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Weak password: no digit",
		},
		{
			name:       "store down",
			err:        oops.Wrap(errors.Join(repository.ErrUnavailable, errors.New("disk I/O error"))),
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newMockedAPI(t)
			var user *models.User
			if tt.err == nil {
				user = alice
			}
			api.users.EXPECT().
				Register(gomock.Any(), &models.RegisterRequest{Username: "alice", Password: "Qwerty!23"}).
				Return(user, tt.err)

			w := api.do(http.MethodPost, "/registration", `{"username":"alice","password":"Qwerty!23"}`)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotContains(t, w.Body.String(), "password_hash")
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, message(t, w))
			}
		})
	}
}

func TestUserController_RegisterForm(t *testing.T) {
	api := newMockedAPI(t)
	api.users.EXPECT().
		Register(gomock.Any(), &models.RegisterRequest{Username: "bob", Password: "Qwerty!23"}).
		Return(&models.User{ID: 2, Username: "bob"}, nil)

	form := url.Values{"username": {"bob"}, "password": {"Qwerty!23"}}
	req := httptest.NewRequest(http.MethodPost, "/registration", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestUserController_Login(t *testing.T) {
	t.Run("issues bearer token", func(t *testing.T) {
		api := newMockedAPI(t)
		api.users.EXPECT().Login(gomock.Any(), gomock.Any()).Return("signed", nil)

		w := api.do(http.MethodPost, "/login", `{"username":"alice","password":"Qwerty!23"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		var got models.LoginResponse
		require.NoError(t, json.Unmarshal(env.Extras, &got))
		assert.Equal(t, models.LoginResponse{AccessToken: "signed", TokenType: "bearer"}, got)
	})

	for _, err := range []error{service.ErrUnknownUser, service.ErrWrongPassword, service.ErrMissingCredentials} {
		t.Run(err.Error(), func(t *testing.T) {
			api := newMockedAPI(t)
			api.users.EXPECT().Login(gomock.Any(), gomock.Any()).Return("", oops.Wrap(err))

			w := api.do(http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			assert.Equal(t, "Incorrect username or password", message(t, w))
		})
	}

	t.Run("store down", func(t *testing.T) {
		api := newMockedAPI(t)
		api.users.EXPECT().Login(gomock.Any(), gomock.Any()).Return("", errors.Join(repository.ErrUnavailable))

		w := api.do(http.MethodPost, "/login", `{"username":"alice","password":"Qwerty!23"}`)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "1", w.Header().Get("Retry-After"))
	})
}

func TestUserController_ListUsernames(t *testing.T) {
	api := newMockedAPI(t)
	api.users.EXPECT().ListUsernames(gomock.Any()).Return(nil, nil)

	w := api.do(http.MethodGet, "/users", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"usernames":[]`)
}

func TestItemController_Errors(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		body        string
		expect      func(m *mocks.MockItemService)
		wantStatus  int
		wantMessage string
	}{
		{
			name:   "duplicate title",
			method: http.MethodPost,
			target: "/items/new",
			body:   `{"title":"lamp"}`,
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Create(gomock.Any(), alice, "lamp").
					Return(nil, oops.With("item.title", "lamp").Wrap(service.ErrDuplicateTitle))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Item 'lamp' already exists",
		},
		{
			name:        "missing title",
			method:      http.MethodPost,
			target:      "/items/new",
			body:        `{}`,
			expect:      func(m *mocks.MockItemService) {},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Item title is required",
		},
		{
			name:   "delete missing",
			method: http.MethodDelete,
			target: "/items/42",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Delete(gomock.Any(), alice, int64(42)).Return(oops.Wrap(service.ErrNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "delete non numeric id",
			method:     http.MethodDelete,
			target:     "/items/abc",
			expect:     func(m *mocks.MockItemService) {},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "send to unknown user",
			method: http.MethodPost,
			target: "/send",
			body:   `{"item_id":1,"achiever":"carol"}`,
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Send(gomock.Any(), alice, int64(1), "carol").Return("", oops.Wrap(service.ErrUnknownAchiever))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "send to self",
			method: http.MethodPost,
			target: "/send",
			body:   `{"item_id":1,"achiever":"alice"}`,
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Send(gomock.Any(), alice, int64(1), "alice").Return("", oops.Wrap(service.ErrSameOwner))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "send unknown item",
			method: http.MethodPost,
			target: "/send",
			body:   `{"item_id":9,"achiever":"bob"}`,
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Send(gomock.Any(), alice, int64(9), "bob").Return("", oops.Wrap(service.ErrUnknownItem))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:        "empty transfer key",
			method:      http.MethodGet,
			target:      "/get?transfer_key=",
			expect:      func(m *mocks.MockItemService) {},
			wantStatus:  http.StatusNotFound,
			wantMessage: "Item not found",
		},
		{
			name:   "bad signature",
			method: http.MethodGet,
			target: "/get?transfer_key=forged",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "forged").Return("", oops.Wrap(service.ErrBadSignature))
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "not your link",
			method: http.MethodGet,
			target: "/get?transfer_key=k",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "k").Return("", oops.Wrap(service.ErrNotYourLink))
			},
			wantStatus:  http.StatusForbidden,
			wantMessage: "Sorry, this link isn't for you",
		},
		{
			name:   "malformed payload",
			method: http.MethodGet,
			target: "/get?transfer_key=k",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "k").Return("", oops.Wrap(service.ErrMalformedPayload))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid key",
		},
		{
			name:   "already yours",
			method: http.MethodGet,
			target: "/get?transfer_key=k",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "k").
					Return("", oops.With("item.title", "lamp").Wrap(service.ErrAlreadyYours))
			},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Item lamp is already yours",
		},
		{
			name:   "owner changed",
			method: http.MethodGet,
			target: "/get?transfer_key=k",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "k").Return("", oops.Wrap(service.ErrOwnerChanged))
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "item deleted",
			method: http.MethodGet,
			target: "/get?transfer_key=k",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().Receive(gomock.Any(), alice, "k").Return("", oops.Wrap(service.ErrNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "store down",
			method: http.MethodGet,
			target: "/items",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().ListFor(gomock.Any(), alice).Return(nil, errors.Join(repository.ErrUnavailable))
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:   "unexpected",
			method: http.MethodGet,
			target: "/items",
			expect: func(m *mocks.MockItemService) {
				m.EXPECT().ListFor(gomock.Any(), alice).Return(nil, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newMockedAPI(t)
			tt.expect(api.items)

			w := api.do(tt.method, tt.target, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, message(t, w))
			}
		})
	}
}

func TestItemController_Success(t *testing.T) {
	api := newMockedAPI(t)
	api.items.EXPECT().ListFor(gomock.Any(), alice).Return([]models.Item{{ID: 1, Title: "lamp", OwnerID: 1}}, nil)
	api.items.EXPECT().Create(gomock.Any(), alice, "desk").Return(&models.Item{ID: 2, Title: "desk", OwnerID: 1}, nil)
	api.items.EXPECT().Send(gomock.Any(), alice, int64(2), "bob").Return("http://registry.test/api/v1/get?transfer_key=k", nil)
	api.items.EXPECT().Receive(gomock.Any(), alice, "k").Return("You've just obtained desk", nil)

	w := api.do(http.MethodGet, "/items", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"lamp"`)

	w = api.do(http.MethodPost, "/items/new", `{"title":"desk"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = api.do(http.MethodPost, "/send", `{"item_id":2,"achiever":"bob"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `transfer_key=k`)

	w = api.do(http.MethodGet, "/get?transfer_key=k", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "You've just obtained desk", message(t, w))
}
