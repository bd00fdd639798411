package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

const tokA = "3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e"

// helper: new Echo with the middleware and a simple route
func setupEcho(rdb *redis.Client, ttl time.Duration, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(SubmitGuard(rdb, ttl, nil))
	e.POST("/api/applications", handler)
	e.GET("/api/applications", handler) // for non-mutating bypass test
	e.POST("/apply", handler)
	return e
}

func mkJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func doForm(t *testing.T, e *echo.Echo, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("startupName", "Acme")
	_ = w.WriteField(FieldSubmissionToken, token)
	_ = w.Close()
	req := httptest.NewRequest(http.MethodPost, "/apply", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func countingCreated(n *int32) echo.HandlerFunc {
	return func(c echo.Context) error {
		atomic.AddInt32(n, 1)
		return c.JSON(http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"n": atomic.LoadInt32(n)}})
	}
}

func Test_BypassOnGET_And_NoToken(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))

	if rec := doReq(t, e, http.MethodGet, "/api/applications", nil, nil); rec.Code != http.StatusCreated {
		t.Fatalf("GET: expected pass-through, got %d", rec.Code)
	}
	for i := 0; i < 2; i++ {
		if rec := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{}), nil); rec.Code != http.StatusCreated {
			t.Fatalf("POST without token: expected pass-through, got %d", rec.Code)
		}
	}
	if n != 3 {
		t.Fatalf("handler calls = %d, want 3", n)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("no keys expected, got %v", mr.Keys())
	}
}

func Test_InvalidToken(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))

	rec := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{}), map[string]string{HeaderIdempotencyKey: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if n != 0 {
		t.Fatalf("handler must not run")
	}
}

func Test_HappyPath_Then_Replay(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))

	hdr := map[string]string{HeaderIdempotencyKey: tokA}
	first := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{"a": 1}), hdr)
	if first.Code != http.StatusCreated {
		t.Fatalf("first: expected 201, got %d", first.Code)
	}
	second := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{"a": 1}), hdr)
	if second.Code != http.StatusCreated {
		t.Fatalf("replay: expected 201, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("replay header missing")
	}
	if n != 1 {
		t.Fatalf("handler calls = %d, want 1", n)
	}
}

func Test_Conflict_When_SameToken_DifferentBody(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))

	hdr := map[string]string{HeaderIdempotencyKey: tokA}
	_ = doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{"a": 1}), hdr)
	rec := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{"a": 2}), hdr)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func Test_Conflict_When_InProgress(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))

	// Simulate an in-flight first request
	key := buildKey(http.MethodPost, "/apply", tokA)
	if _, err := provisionalSet(context.Background(), rdb, key, submitEntry{InProgress: true, CreatedAt: nowUTC()}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := doForm(t, e, tokA)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if n != 0 {
		t.Fatalf("handler must not run")
	}
}

func Test_FormToken_RedirectReplayed(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, func(c echo.Context) error {
		atomic.AddInt32(&n, 1)
		return c.Redirect(http.StatusSeeOther, "/apply/confirmation?startup=Acme")
	})

	first := doForm(t, e, tokA)
	second := doForm(t, e, strings.ToUpper(tokA))
	for i, rec := range []*httptest.ResponseRecorder{first, second} {
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("req %d: expected 303, got %d", i, rec.Code)
		}
		if rec.Header().Get(echo.HeaderLocation) != "/apply/confirmation?startup=Acme" {
			t.Fatalf("req %d: location = %q", i, rec.Header().Get(echo.HeaderLocation))
		}
	}
	if n != 1 {
		t.Fatalf("handler calls = %d, want 1", n)
	}
}

func Test_ErrorResponses_AreNotKept(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	var n int32
	e := setupEcho(rdb, 30*time.Second, func(c echo.Context) error {
		if atomic.AddInt32(&n, 1) == 1 {
			return c.String(http.StatusUnprocessableEntity, "fix the form")
		}
		return c.Redirect(http.StatusSeeOther, "/apply/confirmation")
	})

	if rec := doForm(t, e, tokA); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("first: expected 422, got %d", rec.Code)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("key should be released after an error, got %v", mr.Keys())
	}
	if rec := doForm(t, e, tokA); rec.Code != http.StatusSeeOther {
		t.Fatalf("resubmit: expected 303, got %d", rec.Code)
	}
	if n != 2 {
		t.Fatalf("handler calls = %d, want 2", n)
	}
}

func Test_StoreUnavailable_Returns503(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	var n int32
	e := setupEcho(rdb, 30*time.Second, countingCreated(&n))
	mr.Close()

	rec := doReq(t, e, http.MethodPost, "/api/applications", mkJSONBody(t, map[string]any{}), map[string]string{HeaderIdempotencyKey: tokA})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func Test_validToken(t *testing.T) {
	good := []string{tokA, strings.ToUpper(tokA), "0123456789abcdef0123456789abcdef"}
	bad := []string{"", "abc", "0123456789abcdef0123456789abcdeg", "3f2b8c1e-4d5a-7b6c-8d7e-9f0a1b2c3d4e"}
	for _, s := range good {
		if !validToken(s) {
			t.Fatalf("validToken(%q) = false", s)
		}
	}
	for _, s := range bad {
		if validToken(s) {
			t.Fatalf("validToken(%q) = true", s)
		}
	}
}

func Test_bodyHash_And_buildKey(t *testing.T) {
	if bodyHash([]byte("x")) == bodyHash([]byte("y")) {
		t.Fatalf("distinct bodies should hash differently")
	}
	if got := buildKey("POST", "/apply", "tok"); got != "submit:post:/apply:tok" {
		t.Fatalf("buildKey = %q", got)
	}
}
