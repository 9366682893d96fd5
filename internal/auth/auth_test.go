package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/me" {
			http.NotFound(w, r)
			return
		}
		cookie, err := r.Cookie("session_token")
		if err != nil || cookie.Value != "good" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": 7, "email": "Owner@Example.com", "name": "Owner"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUsersServiceResolve(t *testing.T) {
	srv := usersServer(t)
	svc := NewUsersService(srv.URL+"/", "session_token", srv.Client(), nil)

	id, err := svc.Resolve(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "7", Email: "Owner@Example.com", Name: "Owner"}, id)

	_, err = svc.Resolve(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = svc.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUsersServiceUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewUsersService(srv.URL, "session_token", nil, nil).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestOwnerAuthorizer(t *testing.T) {
	a := OwnerAuthorizer{Email: "owner@example.com"}
	assert.True(t, a.IsAdmin(&Identity{Email: "OWNER@example.com"}))
	assert.False(t, a.IsAdmin(&Identity{Email: "someone@example.com"}))
	assert.False(t, a.IsAdmin(nil))
	assert.False(t, OwnerAuthorizer{}.IsAdmin(&Identity{Email: ""}))
}

func newApp() *fiber.App {
	app := fiber.New()
	resolver := Static{Identity: Identity{ID: "1", Email: "user@example.com"}}
	app.Use(Identify(MiddlewareConfig{Resolver: resolver, CookieName: "session_token"}))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(FromContext(c))
	})
	app.Get("/admin", RequireAdmin(OwnerAuthorizer{Email: "owner@example.com"}), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	return app
}

func TestMiddleware(t *testing.T) {
	app := newApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "session_token", Value: "abc"})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"Forbidden"}`, string(body))
}
