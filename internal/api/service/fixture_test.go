package service

import (
	"context"
	"ctchen222/item-registry/internal/api/models"
	"ctchen222/item-registry/internal/api/repository"
	"ctchen222/item-registry/internal/db"
	"ctchen222/item-registry/internal/events"
	"ctchen222/item-registry/internal/validator"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testKey = []byte("test-signing-key")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// fixture wires every service over an in-memory SQLite store.
type fixture struct {
	clock     *fakeClock
	users     repository.UserRepository
	items     repository.ItemRepository
	sessions  SessionTokenService
	transfers TransferTokenService
	guard     AuthGuard
	userSvc   UserService
	itemSvc   ItemService
	publisher *recordingPublisher
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pool, err := db.OpenAndMigrate(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	f := &fixture{clock: newFakeClock(), publisher: &recordingPublisher{}}
	opts := []Option{WithClock(f.clock.Now), WithLogger(quietLogger())}

	f.users = repository.NewUserRepository(pool, 5*time.Second)
	f.items = repository.NewItemRepository(pool, 5*time.Second)
	sessionRepo := repository.NewSessionRepository(pool, 5*time.Second)

	hasher := NewBcryptHasher(bcrypt.MinCost)
	f.sessions = NewSessionTokenService(testKey, 30*time.Minute, sessionRepo, opts...)
	f.transfers = NewTransferTokenService(testKey, f.users, f.items, opts...)
	f.guard = NewAuthGuard(f.users, hasher, f.sessions, opts...)
	f.userSvc = NewUserService(f.users, hasher, validator.DefaultPolicy{}, f.guard, f.sessions, opts...)
	f.itemSvc = NewItemService(f.items, f.transfers, f.publisher, "http://registry.test", opts...)
	return f
}

func (f *fixture) register(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := f.userSvc.Register(context.Background(), &models.RegisterRequest{Username: username, Password: "Qwerty!23"})
	require.NoError(t, err)
	return u
}

func (f *fixture) login(t *testing.T, username string) string {
	t.Helper()
	token, err := f.userSvc.Login(context.Background(), &models.LoginRequest{Username: username, Password: "Qwerty!23"})
	require.NoError(t, err)
	return token
}

func (f *fixture) createItem(t *testing.T, owner *models.User, title string) *models.Item {
	t.Helper()
	item, err := f.itemSvc.Create(context.Background(), owner, title)
	require.NoError(t, err)
	return item
}
