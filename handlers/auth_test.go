package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"sealmax-messenger/auth"
	"sealmax-messenger/domain"
	"sealmax-messenger/observability"
	"sealmax-messenger/repositories"
	"sealmax-messenger/runtime"
	"sealmax-messenger/services"
)

type testApp struct {
	app      *fiber.App
	messages *repositories.MessageRepository
	users    *repositories.UserRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	users, err := repositories.NewUserRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	registry := runtime.NewRegistry()
	router := runtime.NewRouterWorker(log, registry, messages, metrics, 64)
	tokens := auth.NewTokenManager([]byte("test-secret"), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = router.Run(ctx) }()

	authService := services.NewAuthService(users, tokens)
	chatService := services.NewChatService(log, router, messages, users)

	app := fiber.New()
	SetupRoutes(app,
		NewAuthHandler(log, authService),
		NewChatHandler(log, chatService),
		NewWSHandler(log, chatService, registry, tokens, metrics, 8),
		tokens,
		promRegistry,
	)
	return &testApp{app: app, messages: messages, users: users}
}

func (a *testApp) request(t *testing.T, method, target, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var parsed map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp, parsed
}

func register(t *testing.T, a *testApp, username, customID, password string) (string, int64) {
	t.Helper()
	body := `{"username":"` + username + `","customId":"` + customID + `","password":"` + password + `"}`
	resp, parsed := a.request(t, fiber.MethodPost, "/api/register", "", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	token, _ := parsed["token"].(string)
	require.NotEmpty(t, token)
	user, _ := parsed["user"].(map[string]any)
	return token, int64(user["id"].(float64))
}

func Test_Register_Login_Flow(t *testing.T) {
	req := require.New(t)
	a := newTestApp(t)

	token, userID := register(t, a, "Alice", "wonder1", "Password123")
	req.NotEmpty(token)
	req.Positive(userID)

	t.Run("duplicate case-variant username is rejected", func(t *testing.T) {
		resp, _ := a.request(t, fiber.MethodPost, "/api/register", "",
			`{"username":"ALICE","password":"Password123"}`)
		require.Equal(t, fiber.StatusConflict, resp.StatusCode)
	})

	t.Run("invalid custom id is rejected", func(t *testing.T) {
		resp, _ := a.request(t, fiber.MethodPost, "/api/register", "",
			`{"username":"Bob","customId":"1bad","password":"Password123"}`)
		require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("login works with any case variant", func(t *testing.T) {
		resp, parsed := a.request(t, fiber.MethodPost, "/api/login", "",
			`{"username":"aLiCe","password":"Password123"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		require.NotEmpty(t, parsed["token"])
	})

	t.Run("login rejects a wrong password", func(t *testing.T) {
		resp, _ := a.request(t, fiber.MethodPost, "/api/login", "",
			`{"username":"Alice","password":"Nope12345"}`)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout needs a token and returns no content", func(t *testing.T) {
		resp, _ := a.request(t, fiber.MethodPost, "/api/logout", "", "")
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

		resp, _ = a.request(t, fiber.MethodPost, "/api/logout", token, "")
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	})
}

func Test_Pull_Routes_Require_Authentication(t *testing.T) {
	a := newTestApp(t)

	for _, target := range []string{"/api/messages?with=1", "/api/contacts", "/api/users?id=1"} {
		resp, _ := a.request(t, fiber.MethodGet, target, "", "")
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "target %s", target)
	}
}

func Test_Conversation_And_Contacts_Routes(t *testing.T) {
	req := require.New(t)
	a := newTestApp(t)

	aliceToken, aliceID := register(t, a, "Alice", "", "Password123")
	bobToken, bobID := register(t, a, "Bob", "", "Password123")

	resp, parsed := a.request(t, fiber.MethodGet, "/api/contacts", aliceToken, "")
	req.Equal(fiber.StatusOK, resp.StatusCode)
	req.Empty(parsed["contacts"])

	// Persist a direct exchange through the store, as the router would.
	_, err := a.messages.InsertMessage(aliceID, domain.Direct(bobID), "hi bob")
	req.NoError(err)

	resp, parsed = a.request(t, fiber.MethodGet, "/api/contacts", bobToken, "")
	req.Equal(fiber.StatusOK, resp.StatusCode)
	contacts := parsed["contacts"].([]any)
	req.Len(contacts, 1)
	req.Equal("Alice", contacts[0].(map[string]any)["username"])

	resp, parsed = a.request(t, fiber.MethodGet, "/api/messages?with="+strconv.FormatInt(bobID, 10), aliceToken, "")
	req.Equal(fiber.StatusOK, resp.StatusCode)
	messages := parsed["messages"].([]any)
	req.Len(messages, 1)
	req.Equal("hi bob", messages[0].(map[string]any)["text"])

	resp, _ = a.request(t, fiber.MethodGet, "/api/messages?with=abc", aliceToken, "")
	req.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func Test_User_Lookup_Route(t *testing.T) {
	req := require.New(t)
	a := newTestApp(t)

	token, aliceID := register(t, a, "Alice", "Wonder1", "Password123")

	resp, parsed := a.request(t, fiber.MethodGet, "/api/users?username=ALICE", token, "")
	req.Equal(fiber.StatusOK, resp.StatusCode)
	req.Equal(float64(aliceID), parsed["id"])
	req.Equal("Alice", parsed["username"])

	resp, _ = a.request(t, fiber.MethodGet, "/api/users?customId=wonder1", token, "")
	req.Equal(fiber.StatusOK, resp.StatusCode)

	resp, _ = a.request(t, fiber.MethodGet, "/api/users?username=ghost", token, "")
	req.Equal(fiber.StatusNotFound, resp.StatusCode)

	resp, _ = a.request(t, fiber.MethodGet, "/api/users", token, "")
	req.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

