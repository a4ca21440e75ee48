package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaun/figcode/server/internal/auth"
	"github.com/stretchr/testify/assert"
)

func TestRouter_health(t *testing.T) {
	router := newTestRouter(&fakeGitHub{}, &fakeOAuth{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_options(t *testing.T) {
	gh := &fakeGitHub{}
	router := newTestRouter(gh, &fakeOAuth{})
	req := httptest.NewRequest(http.MethodOptions, "/?action=push", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "x-github-token")
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Empty(t, gh.calls)
}

func TestRouter_corsOnErrors(t *testing.T) {
	router := newTestRouter(&fakeGitHub{}, &fakeOAuth{})
	req := httptest.NewRequest(http.MethodGet, "/?action=user", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_basicAuth(t *testing.T) {
	router := NewRouter(NewHandlerWithGitHub((&fakeGitHub{}).connect, &fakeOAuth{}), auth.BasicAuth("u", "p"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?action=user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
