package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/services"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
	tu "github.com/desertthunder/animx/internal/testing"
	"github.com/gin-gonic/gin"
)

type fixture struct {
	server *Server
	client *tu.FakeTaskClient
	store  *tu.MockUserStore
	auth   *services.AuthService
}

func newFixture(t *testing.T, mutate func(*shared.Config, *Deps)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := shared.DefaultConfig()
	cfg.Server.RateLimit = 0
	cfg.Auth.AdminToken = "admin-secret"

	logger := shared.NewLogger(io.Discard)
	client := &tu.FakeTaskClient{Polls: []tu.PollResult{tu.Poll(models.StateSucceeded, "https://cdn/out.png")}}
	store := tu.NewMockUserStore()
	auth := services.NewAuthService(store, services.NewTokenService("jwt-secret", time.Hour), logger)

	deps := Deps{
		Generator: tasks.NewGenerationEngine(tasks.EngineOpts{Client: client, Interval: time.Millisecond, MaxAttempts: 5, Logger: logger}),
		Provider:  client,
		Auth:      auth,
		Logger:    logger,
	}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	return &fixture{server: New(*cfg, deps), client: client, store: store, auth: auth}
}

func (f *fixture) do(method, target string, body any, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return out
}

func TestConvert(t *testing.T) {
	valid := map[string]any{"imageUrl": "https://example.com/cat.png", "prompt": "anime style"}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodPost, "/api/convert", valid)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["success"] != true || body["imageUrl"] != "https://cdn/out.png" {
			t.Errorf("unexpected body %v", body)
		}
		if _, ok := body["imageUrls"]; ok {
			t.Error("single output must not return imageUrls")
		}
	})

	t.Run("multiple outputs", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.Polls = []tu.PollResult{tu.Poll(models.StateSucceeded, "https://cdn/1.png", "https://cdn/2.png")}

		rec := f.do(http.MethodPost, "/api/convert", map[string]any{"imageUrl": "https://example.com/cat.png", "prompt": "p", "outputNum": 2})
		body := decode(t, rec)
		urls, ok := body["imageUrls"].([]any)
		if rec.Code != http.StatusOK || !ok || len(urls) != 2 {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("data reference", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodPost, "/api/convert", map[string]any{"imageUrl": "data:image/png;base64,QUJD", "prompt": "p"})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, body := range []any{
			map[string]any{"prompt": "p"},
			map[string]any{"imageUrl": "https://example.com/a.png"},
			map[string]any{"imageUrl": "https://example.com/a.png", "prompt": "   "},
		} {
			rec := f.do(http.MethodPost, "/api/convert", body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400 for %v, got %d", body, rec.Code)
			}
			if decode(t, rec)["success"] != false {
				t.Error("expected success false")
			}
		}
		if f.client.Creates() != 0 {
			t.Error("validation failures must not reach the provider")
		}
	})

	t.Run("malformed image reference", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodPost, "/api/convert", map[string]any{"imageUrl": "ftp://x/y.png", "prompt": "p"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodPost, "/api/convert", "{not json"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.NoCredentials = true

		rec := f.do(http.MethodPost, "/api/convert", valid)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if f.client.Creates() != 0 || f.client.PollCount() != 0 {
			t.Error("expected no provider calls")
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.Polls = []tu.PollResult{{Status: &models.TaskStatus{State: models.StateFailed, Message: "bad image"}}}

		rec := f.do(http.MethodPost, "/api/convert", valid)
		body := decode(t, rec)
		if rec.Code != http.StatusInternalServerError || !strings.Contains(fmt.Sprint(body["error"]), "bad image") {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("polling timeout", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.Polls = []tu.PollResult{tu.Poll(models.StateRunning)}

		rec := f.do(http.MethodPost, "/api/convert", valid)
		body := decode(t, rec)
		if rec.Code != http.StatusInternalServerError || !strings.Contains(fmt.Sprint(body["error"]), "retry") {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodGet, "/api/convert", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if decode(t, rec)["error"] != "Method not allowed" {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("preflight", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodOptions, "/api/convert", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing CORS origin header")
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
			t.Error("missing CORS methods header")
		}
		if f.client.Creates() != 0 {
			t.Error("preflight must not generate")
		}
	})

	t.Run("body limit", func(t *testing.T) {
		f := newFixture(t, func(cfg *shared.Config, _ *Deps) { cfg.Server.MaxBodyMB = 1 })
		big := map[string]any{"imageUrl": "data:image/png;base64," + strings.Repeat("A", 2<<20), "prompt": "p"}

		if rec := f.do(http.MethodPost, "/api/convert", big); rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})

	t.Run("rate limit", func(t *testing.T) {
		f := newFixture(t, func(cfg *shared.Config, _ *Deps) {
			cfg.Server.RateLimit = 0.001
			cfg.Server.RateBurst = 1
		})

		if rec := f.do(http.MethodPost, "/api/convert", valid); rec.Code != http.StatusOK {
			t.Fatalf("expected first request to pass, got %d", rec.Code)
		}
		rec := f.do(http.MethodPost, "/api/convert", valid)
		if rec.Code != http.StatusTooManyRequests || decode(t, rec)["success"] != false {
			t.Errorf("expected 429, got %d", rec.Code)
		}
	})

	t.Run("request id", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodGet, "/health", nil); rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected generated request id")
		}
		if rec := f.do(http.MethodGet, "/health", nil, RequestIDHeader, "abc"); rec.Header().Get(RequestIDHeader) != "abc" {
			t.Error("expected incoming request id to be echoed")
		}
	})
}

func TestText2Img(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodPost, "/api/text2img", map[string]any{"prompt": "a fox"})
		body := decode(t, rec)
		if rec.Code != http.StatusOK || body["imageUrl"] != "https://cdn/out.png" {
			t.Errorf("unexpected response %d %v", rec.Code, body)
		}
	})

	t.Run("missing prompt", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodPost, "/api/text2img", map[string]any{}); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodPut, "/api/text2img", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestAuth(t *testing.T) {
	register := func(f *fixture, user, pass string) *httptest.ResponseRecorder {
		return f.do(http.MethodPost, "/api/auth?action=register", map[string]any{"username": user, "password": pass})
	}

	t.Run("register", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := register(f, "alice", "password1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		body := decode(t, rec)
		user, _ := body["user"].(map[string]any)
		if body["success"] != true || user["username"] != "alice" || user["isVIP"] != false {
			t.Errorf("unexpected body %v", body)
		}
		if _, leaked := user["password"]; leaked || strings.Contains(rec.Body.String(), "$2a$") {
			t.Error("password hash must not be returned")
		}
	})

	t.Run("register duplicate", func(t *testing.T) {
		f := newFixture(t, nil)
		register(f, "alice", "password1")
		if rec := register(f, "alice", "password2"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("register invalid", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := register(f, "a", "password1"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for short username, got %d", rec.Code)
		}
		if rec := register(f, "alice", "123"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for short password, got %d", rec.Code)
		}
		if rec := register(f, "alice", strings.Repeat("p", 80)); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for a password over 72 bytes, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("login and me", func(t *testing.T) {
		f := newFixture(t, nil)
		register(f, "alice", "password1")

		rec := f.do(http.MethodPost, "/api/auth?action=login", map[string]any{"username": "alice", "password": "password1"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		token, _ := decode(t, rec)["token"].(string)
		if token == "" {
			t.Fatal("expected token")
		}

		me := f.do(http.MethodGet, "/api/auth?action=me", nil, "Authorization", "Bearer "+token)
		body := decode(t, me)
		user, _ := body["user"].(map[string]any)
		if me.Code != http.StatusOK || user["username"] != "alice" || user["lastLoginTime"] == nil {
			t.Errorf("unexpected me response %d %v", me.Code, body)
		}
	})

	t.Run("login rejected", func(t *testing.T) {
		f := newFixture(t, nil)
		register(f, "alice", "password1")

		wrong := f.do(http.MethodPost, "/api/auth?action=login", map[string]any{"username": "alice", "password": "nope123"})
		unknown := f.do(http.MethodPost, "/api/auth?action=login", map[string]any{"username": "bob", "password": "password1"})
		if wrong.Code != http.StatusBadRequest || unknown.Code != http.StatusBadRequest {
			t.Errorf("expected 400s, got %d and %d", wrong.Code, unknown.Code)
		}
		if decode(t, wrong)["error"] != decode(t, unknown)["error"] {
			t.Error("wrong password and unknown user must be indistinguishable")
		}
	})

	t.Run("me without token", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodGet, "/api/auth?action=me", nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
		if rec := f.do(http.MethodGet, "/api/auth?action=me", nil, "Authorization", "Bearer garbage"); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("setVIP", func(t *testing.T) {
		f := newFixture(t, nil)
		register(f, "alice", "password1")
		body := map[string]any{"username": "alice", "isVIP": true}

		if rec := f.do(http.MethodPost, "/api/auth?action=setVIP", body); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 without admin token, got %d", rec.Code)
		}

		rec := f.do(http.MethodPost, "/api/auth?action=setVIP", body, "Authorization", "Bearer admin-secret")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		user, err := f.store.GetByUsername(context.Background(), "alice")
		if err != nil || !user.IsVIP {
			t.Errorf("expected alice to be VIP, got %+v (%v)", user, err)
		}

		missing := f.do(http.MethodPost, "/api/auth?action=setVIP", map[string]any{"username": "ghost", "isVIP": true}, "Authorization", "Bearer admin-secret")
		if missing.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for unknown user, got %d", missing.Code)
		}
	})

	t.Run("wrong method for action", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodGet, "/api/auth?action=register", nil); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(http.MethodPost, "/api/auth?action=delete", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		actions, _ := decode(t, rec)["availableActions"].([]any)
		if len(actions) != len(availableActions) {
			t.Errorf("expected available actions, got %v", actions)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.store.Err = errors.New("connection lost")
		if rec := register(f, "alice", "password1"); rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, func(_ *shared.Config, d *Deps) { d.Auth = nil })
		if rec := register(f, "alice", "password1"); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		f := newFixture(t, nil)
		body := decode(t, f.do(http.MethodGet, "/health", nil))
		if body["status"] != "ok" || body["provider"] != "configured" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newFixture(t, nil)
		f.client.NoCredentials = true
		body := decode(t, f.do(http.MethodGet, "/health", nil))
		if body["provider"] != "missing_credentials" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		f := newFixture(t, nil)
		if rec := f.do(http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{shared.ErrMissingArgument, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrUserExists, http.StatusBadRequest},
		{shared.ErrInvalidCredentials, http.StatusBadRequest},
		{shared.ErrUserNotFound, http.StatusBadRequest},
		{shared.ErrNotAuthenticated, http.StatusUnauthorized},
		{shared.ErrForbidden, http.StatusForbidden},
		{shared.ErrRateLimited, http.StatusTooManyRequests},
		{shared.ErrServiceUnavailable, http.StatusServiceUnavailable},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{shared.ErrMissingCredentials, http.StatusInternalServerError},
		{shared.ErrTaskCreation, http.StatusInternalServerError},
		{shared.ErrPollingTimeout, http.StatusInternalServerError},
		{shared.ErrRequestTimeout, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestServe(t *testing.T) {
	t.Run("shuts down when the context ends", func(t *testing.T) {
		f := newFixture(t, nil)
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- f.server.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("routes", func(t *testing.T) {
		f := newFixture(t, nil)
		routes := strings.Join(f.server.Routes(), " ")
		for _, want := range []string{"/api/convert", "/api/text2img", "/api/auth", "/health"} {
			if !strings.Contains(routes, want) {
				t.Errorf("missing route %s in %s", want, routes)
			}
		}
	})

	t.Run("LocalIP", func(t *testing.T) {
		if LocalIP() == "" {
			t.Error("expected an address")
		}
	})
}
