package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestContext(mutate func(*http.Request)) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	if mutate != nil {
		mutate(req)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestTokenFromRequestCookie(t *testing.T) {
	c := requestContext(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "aaa.bbb.ccc"})
	})
	token, err := tokenFromRequest(c)
	if err != nil {
		t.Fatalf("token from cookie: %v", err)
	}
	if string(token) != "aaa.bbb.ccc" {
		t.Fatalf("unexpected token: %s", token)
	}
}

func TestTokenFromRequestBearerFallback(t *testing.T) {
	c := requestContext(func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "  Bearer aaa.bbb.ccc  ")
	})
	token, err := tokenFromRequest(c)
	if err != nil {
		t.Fatalf("token from header: %v", err)
	}
	if string(token) != "aaa.bbb.ccc" {
		t.Fatalf("unexpected token: %s", token)
	}
}

func TestTokenFromRequestCookieWinsOverHeader(t *testing.T) {
	c := requestContext(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: "cookie.token.value"})
		r.Header.Set(echo.HeaderAuthorization, "Bearer header.token.value")
	})
	token, err := tokenFromRequest(c)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if string(token) != "cookie.token.value" {
		t.Fatalf("cookie should win, got %s", token)
	}
}

func TestTokenFromRequestMissing(t *testing.T) {
	if _, err := tokenFromRequest(requestContext(nil)); err == nil {
		t.Fatal("missing token must error")
	}
}

func TestBearerTokenFromStringRejectsMalformed(t *testing.T) {
	for _, header := range []string{
		"",
		"   ",
		"Bearer",
		"Bearer ",
		"Basic aaa.bbb.ccc",
		"Bearer aaa.bbb",
		"Bearer aaa.bbb.ccc.ddd",
	} {
		if _, err := bearerTokenFromString(header); err == nil {
			t.Fatalf("header %q should be rejected", header)
		}
	}
}
