package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"trading-support-app/internal/auth"
	"trading-support-app/internal/chat"
	"trading-support-app/internal/database"
	"trading-support-app/internal/events"
	"trading-support-app/internal/notify"
	"trading-support-app/internal/state"
	"trading-support-app/internal/wallet"
)

// fakeStateRepo satisfies state.Repo for handlers that write through the
// mirror. Only deletion is recorded; reads come from the mirror itself.
type fakeStateRepo struct {
	deleted []string
}

func (f *fakeStateRepo) ListUsers(ctx context.Context) ([]*database.User, error) { return nil, nil }
func (f *fakeStateRepo) ListMessages(ctx context.Context) ([]*database.Message, error) {
	return nil, nil
}
func (f *fakeStateRepo) ListTransactions(ctx context.Context) ([]*database.Transaction, error) {
	return nil, nil
}
func (f *fakeStateRepo) ListNotifications(ctx context.Context) ([]*database.Notification, error) {
	return nil, nil
}
func (f *fakeStateRepo) CreateMessage(ctx context.Context, msg *database.Message) error { return nil }
func (f *fakeStateRepo) CreateNotification(ctx context.Context, n *database.Notification) error {
	return nil
}
func (f *fakeStateRepo) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	return true, nil
}
func (f *fakeStateRepo) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	return nil
}
func (f *fakeStateRepo) UpdateUserProfile(ctx context.Context, user *database.User) error {
	return nil
}
func (f *fakeStateRepo) DeleteUser(ctx context.Context, userID string) error {
	f.deleted = append(f.deleted, userID)
	return nil
}

func newTestServer(t *testing.T) (*Server, *state.Store, *auth.JWTManager) {
	t.Helper()

	bus := events.NewEventBus()
	store := state.NewStore(&fakeStateRepo{}, bus, zerolog.Nop())

	authConfig := auth.DefaultConfig()
	authConfig.JWTSecret = "test-secret-for-handlers-only"
	authService := auth.NewService(nil, bus, nil, authConfig)

	chatService := chat.NewService(nil, store, bus,
		"Welcome to our company! How may we assist you?", 2*time.Second, zerolog.Nop())
	walletService := wallet.NewService(nil, store, bus, zerolog.Nop())

	server := NewServer(ServerConfig{Port: 0, Host: "127.0.0.1", ProductionMode: true},
		nil, bus, authService, store, walletService, chatService, nil,
		notify.NewManager(false), zerolog.Nop())

	return server, store, authService.GetJWTManager()
}

func bearerToken(t *testing.T, jwtManager *auth.JWTManager, userID string, admin bool) string {
	t.Helper()
	token, err := jwtManager.GenerateAccessToken(auth.UserClaims{
		UserID:    userID,
		Email:     userID + "@example.com",
		TradingID: "#TRD-123456",
		IsAdmin:   admin,
	})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return "Bearer " + token
}

func TestTransactionsRequireAuth(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/transactions", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a token, got %d", w.Code)
	}
}

func TestGetTransactionsReturnsOwnOnly(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	now := time.Now()
	store.ApplyTransaction(&database.Transaction{ID: "t1", UserID: "u1", Amount: 50, CreatedAt: now})
	store.ApplyTransaction(&database.Transaction{ID: "t2", UserID: "u2", Amount: 75, CreatedAt: now})

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/transactions", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "u1", false))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var response struct {
		Data []database.Transaction `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Data) != 1 || response.Data[0].ID != "t1" {
		t.Errorf("expected only u1's transaction, got %+v", response.Data)
	}
}

func TestGetNotificationsIncludesUnreadCount(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	now := time.Now()
	store.ApplyNotification(&database.Notification{ID: "n1", UserID: "u1", Read: false, CreatedAt: now})
	store.ApplyNotification(&database.Notification{ID: "n2", UserID: "u1", Read: true, CreatedAt: now})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "u1", false))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var response struct {
		Data struct {
			Unread int `json:"unread"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Data.Unread != 1 {
		t.Errorf("expected unread 1, got %d", response.Data.Unread)
	}
}

func TestAdminRoutesRejectNonAdmin(t *testing.T) {
	server, _, jwtManager := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "u1", false))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestAdminListUsersSkipsAdmins(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	now := time.Now()
	store.ApplyUser(&database.User{ID: "admin", Name: "Support", IsAdmin: true, JoinedAt: now})
	store.ApplyUser(&database.User{ID: "u1", Name: "Ada", TradingID: "#TRD-111111", JoinedAt: now})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "admin", true))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var response struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(response.Data) != 1 {
		t.Fatalf("expected 1 user, got %d", len(response.Data))
	}
	if response.Data[0]["trading_id"] != "#TRD-111111" {
		t.Errorf("unexpected user in listing: %+v", response.Data[0])
	}
}

func TestSendMessageRejectsBlankText(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	store.ApplyUser(&database.User{ID: "admin", Name: "Support", IsAdmin: true, JoinedAt: time.Now()})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/messages",
		strings.NewReader(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "u1", false))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank message, got %d", w.Code)
	}
}

func TestResponsesCarryTraceID(t *testing.T) {
	server, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/wallet/transactions", nil)
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("every response should carry a trace ID header")
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("/api/auth/login") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("/api/auth/login") {
		t.Error("request over the limit should be denied")
	}
	if !limiter.Allow("/api/auth/register") {
		t.Error("a different endpoint should have its own budget")
	}
}

func TestAdminDeleteUser(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	now := time.Now()
	store.ApplyUser(&database.User{ID: "u1", Name: "Ada", JoinedAt: now})
	store.ApplyNotification(&database.Notification{ID: "n1", UserID: "u1", CreatedAt: now})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/u1", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "admin", true))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.UserByID("u1") != nil {
		t.Error("deleted user still in mirror")
	}
	if got := len(store.UserNotifications("u1")); got != 0 {
		t.Errorf("deleted user's notifications still mirrored: %d", got)
	}
}

func TestAdminDeleteUserRejectsAdminTarget(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	store.ApplyUser(&database.User{ID: "admin", Name: "Support", IsAdmin: true, JoinedAt: time.Now()})

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/admin", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "admin", true))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 when targeting an admin, got %d", w.Code)
	}
	if store.UserByID("admin") == nil {
		t.Error("admin account must survive")
	}
}

func TestAdminDeleteUserUnknown(t *testing.T) {
	server, _, jwtManager := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/ghost", nil)
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "admin", true))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown user, got %d", w.Code)
	}
}

func TestWithdrawalRejectsNegativeAmount(t *testing.T) {
	server, store, jwtManager := newTestServer(t)

	store.ApplyUser(&database.User{ID: "u1", Name: "Ada", Balance: 100, JoinedAt: time.Now()})

	req := httptest.NewRequest(http.MethodPost, "/api/wallet/withdrawals",
		strings.NewReader(`{"amount":-20}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerToken(t, jwtManager, "u1", false))
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative amount, got %d", w.Code)
	}
}
