package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func authEcho(allow []string) *echo.Echo {
	e := echo.New()
	g := e.Group("/admin", AdminAuth("X-Auth-Request-Email", allow, nil))
	g.GET("", func(c echo.Context) error {
		who, ok := IdentityFromContext(c.Request().Context())
		if !ok {
			return c.String(http.StatusInternalServerError, "no identity")
		}
		return c.String(http.StatusOK, who)
	})
	return e
}

func TestAdminAuth(t *testing.T) {
	cases := []struct {
		name  string
		allow []string
		hdr   string
		code  int
		body  string
	}{
		{"missing header", nil, "", http.StatusUnauthorized, ""},
		{"open allowlist", nil, "Anyone@Example.com", http.StatusOK, "anyone@example.com"},
		{"allowed", []string{" Ops@Acc.io "}, "ops@acc.io", http.StatusOK, "ops@acc.io"},
		{"not allowed", []string{"ops@acc.io"}, "intruder@acc.io", http.StatusForbidden, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := authEcho(tc.allow)
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.hdr != "" {
				req.Header.Set("X-Auth-Request-Email", tc.hdr)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("code = %d, want %d", rec.Code, tc.code)
			}
			if tc.body != "" && rec.Body.String() != tc.body {
				t.Fatalf("body = %q, want %q", rec.Body.String(), tc.body)
			}
		})
	}
}

func TestIdentityFromContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("empty context should carry no identity")
	}
	if _, ok := IdentityFromContext(WithIdentity(context.Background(), "")); ok {
		t.Fatal("blank identity should not count")
	}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), "a@b.io"))
	if !ok || got != "a@b.io" {
		t.Fatalf("got %q %v", got, ok)
	}
}
