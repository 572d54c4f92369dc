package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/findaly/findaly/internal/config"
	apperrors "github.com/findaly/findaly/internal/errors"
	"github.com/findaly/findaly/sessions"
	"github.com/findaly/findaly/users"
	fakeuserrepo "github.com/findaly/findaly/users/repofake"
)

const testAdminPassword = "correct-horse-battery"

type testServer struct {
	*Server
	users    *fakeuserrepo.FakeUserRepo
	sessions *sessions.InMemoryRepo
}

func newTestServer(t *testing.T, mutate func(*config.Settings)) *testServer {
	t.Helper()
	c := config.Defaults()
	c.Security.AdminSecret = testAdminSecret
	if mutate != nil {
		mutate(&c)
	}

	userRepo := fakeuserrepo.NewFakeUserRepo()
	sessionRepo := sessions.NewInMemoryRepo()
	s, err := New(c, userRepo, sessionRepo)
	require.NoError(t, err)
	return &testServer{Server: s, users: userRepo, sessions: sessionRepo}
}

func withAdminPassword(t *testing.T) func(*config.Settings) {
	t.Helper()
	hash, err := users.HashPassword(testAdminPassword)
	require.NoError(t, err)
	return func(c *config.Settings) { c.Security.AdminPasswordHash = hash }
}

func (ts *testServer) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	ts.ServeHTTP(rr, req)
	return rr
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path string, body any) *http.Request {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set("Content-Type", contentTypeJSON)
	return req
}

func responseCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNew_RequiresRepositories(t *testing.T) {
	_, err := New(config.Defaults(), nil, sessions.NewInMemoryRepo())
	require.Error(t, err)
}

func TestServer_AdminLoginPageIsReachable(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin/login?next=%2Fadmin%2Fusers", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "Admin sign in")
	require.Contains(t, rr.Body.String(), `value="/admin/users"`)
	require.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestServer_AdminWithoutSecret(t *testing.T) {
	ts := newTestServer(t, func(c *config.Settings) {
		c.Security.AdminSecret = ""
		c.EnvVars.Env = "PROD"
	})

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "/admin/login?next=%2Fadmin", rr.Header().Get("Location"))

	rr = ts.do(postForm("/admin/login", url.Values{"password": {testAdminPassword}}))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_AdminLoginWithoutPasswordHash(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(postForm("/admin/login", url.Values{"password": {testAdminPassword}}))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestServer_AdminLoginFlow(t *testing.T) {
	ts := newTestServer(t, withAdminPassword(t))
	cookieName := config.Defaults().GetAdminCookieName()

	t.Run("wrong password", func(t *testing.T) {
		rr := ts.do(postForm("/admin/login", url.Values{"password": {"nope"}, "next": {"/admin/users"}}))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/admin/login?error=Invalid+password&next=%2Fadmin%2Fusers", rr.Header().Get("Location"))
		require.Nil(t, responseCookie(rr, cookieName))
	})

	t.Run("unsafe next falls back", func(t *testing.T) {
		rr := ts.do(postForm("/admin/login", url.Values{"password": {testAdminPassword}, "next": {"//evil.example"}}))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/admin", rr.Header().Get("Location"))
	})

	t.Run("sign in then browse", func(t *testing.T) {
		rr := ts.do(postForm("/admin/login", url.Values{"password": {testAdminPassword}, "next": {"/admin/users"}}))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/admin/users", rr.Header().Get("Location"))

		cookie := responseCookie(rr, cookieName)
		require.NotNil(t, cookie)
		require.True(t, cookie.HttpOnly)
		require.Equal(t, "/", cookie.Path)
		require.Equal(t, int(config.Defaults().GetAdminTokenTTL().Seconds()), cookie.MaxAge)
		require.True(t, ts.admin.Verify(cookie.Value))

		rr = ts.do(httptest.NewRequest(http.MethodGet, "/admin/users", nil), cookie)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), "Section: users")
		require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))

		// Already signed in: the login page forwards.
		rr = ts.do(httptest.NewRequest(http.MethodGet, "/admin/login?next=%2Fadmin%2Fusers", nil), cookie)
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/admin/users", rr.Header().Get("Location"))
	})

	t.Run("logout clears the cookie", func(t *testing.T) {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rr := ts.do(httptest.NewRequest(method, "/admin/logout", nil))
			require.Equal(t, http.StatusSeeOther, rr.Code)
			require.Equal(t, "/admin/login", rr.Header().Get("Location"))
			require.Contains(t, rr.Header().Get("Set-Cookie"), cookieName+"=;")
			require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
		}
	})

	t.Run("htmx login", func(t *testing.T) {
		req := postForm("/admin/login", url.Values{"password": {testAdminPassword}})
		req.Header.Set("HX-Request", "true")
		rr := ts.do(req)
		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Equal(t, "/admin", rr.Header().Get("HX-Redirect"))
	})
}

func TestServer_AdminDashboardRechecksExemptPrefix(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/admin/logoutx", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	require.Equal(t, "/admin/login?next=%2Fadmin%2Flogoutx", rr.Header().Get("Location"))
}

func TestServer_UserAPI(t *testing.T) {
	ts := newTestServer(t, nil)
	cookieName := config.Defaults().GetSessionCookieName()

	rr := ts.do(postJSON(RouteAPIRegister, map[string]any{
		"email":    "  Jane@Findaly.co ",
		"password": "Sup3rSecret",
		"name":     "Jane",
	}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var registered userResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &registered))
	require.Equal(t, "jane@findaly.co", registered.User.Email)
	require.NotContains(t, rr.Body.String(), "$2a$")

	session := responseCookie(rr, cookieName)
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, session.SameSite)
	require.Equal(t, 1, ts.sessions.Len())

	t.Run("duplicate email", func(t *testing.T) {
		rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "jane@findaly.co", "password": "Sup3rSecret"}))
		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "weak@findaly.co", "password": "short"}))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("me", func(t *testing.T) {
		rr := ts.do(httptest.NewRequest(http.MethodGet, RouteAPIMe, nil), session)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), `"email":"jane@findaly.co"`)
	})

	t.Run("bad credentials look alike", func(t *testing.T) {
		for _, body := range []map[string]any{
			{"email": "jane@findaly.co", "password": "Wr0ngPassword"},
			{"email": "nobody@findaly.co", "password": "Sup3rSecret"},
			{"email": "not-an-email", "password": "Sup3rSecret"},
		} {
			rr := ts.do(postJSON(RouteAPILogin, body))
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.JSONEq(t, `{"error":"invalid email or password"}`, rr.Body.String())
		}
	})

	t.Run("api refuses form posts", func(t *testing.T) {
		form := url.Values{"email": {"jane@findaly.co"}, "password": {"Sup3rSecret"}}
		for _, p := range []string{RouteAPILogin, RouteAPIRegister} {
			rr := ts.do(postForm(p, form))
			require.Equal(t, http.StatusUnsupportedMediaType, rr.Code, p)
			require.Nil(t, responseCookie(rr, cookieName), p)
		}
	})

	t.Run("form login with remember", func(t *testing.T) {
		rr := ts.do(postForm(RouteLogin, url.Values{
			"email":    {"jane@findaly.co"},
			"password": {"Sup3rSecret"},
			"remember": {"on"},
			"next":     {"/settings/profile"},
		}))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/settings/profile", rr.Header().Get("Location"))
		c := responseCookie(rr, cookieName)
		require.NotNil(t, c)
		require.Greater(t, c.MaxAge, int(config.Defaults().GetSessionTTL().Seconds()))
	})

	t.Run("logout", func(t *testing.T) {
		rr := ts.do(postJSON(RouteAPILogout, nil), session)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")

		rr = ts.do(httptest.NewRequest(http.MethodGet, RouteAPIMe, nil), session)
		require.Equal(t, http.StatusUnauthorized, rr.Code)

		// Logging out twice is fine.
		rr = ts.do(postJSON(RouteAPILogout, nil), session)
		require.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestServer_Settings(t *testing.T) {
	ts := newTestServer(t, nil)
	cookieName := config.Defaults().GetSessionCookieName()

	rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "sam@findaly.co", "password": "Sup3rSecret"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	session := responseCookie(rr, cookieName)

	t.Run("signed in", func(t *testing.T) {
		rr := ts.do(httptest.NewRequest(http.MethodGet, "/settings/profile", nil), session)
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), "sam@findaly.co")
		require.Contains(t, rr.Body.String(), "Section: profile")
	})

	t.Run("stale cookie is cleared", func(t *testing.T) {
		stale := &http.Cookie{Name: cookieName, Value: "stale-token"}
		rr := ts.do(httptest.NewRequest(http.MethodGet, "/settings/profile", nil), stale)
		require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		require.Equal(t, "/login?next=%2Fsettings%2Fprofile", rr.Header().Get("Location"))
		require.Contains(t, rr.Header().Get("Set-Cookie"), "Max-Age=0")
	})

	t.Run("no cookie", func(t *testing.T) {
		rr := ts.do(httptest.NewRequest(http.MethodGet, "/settings", nil))
		require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
		require.Equal(t, "/login?next=%2Fsettings", rr.Header().Get("Location"))
	})
}

func TestServer_LoginPage(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(httptest.NewRequest(http.MethodGet, "/login?next=%2Fsettings%2Fprofile", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	require.Contains(t, body, `<form id="login" method="post" action="/login">`)
	require.Contains(t, body, `name="next" value="/settings/profile"`)
	require.NotContains(t, body, "/auth/oidc/start")
}

func TestServer_LoginForm(t *testing.T) {
	ts := newTestServer(t, func(c *config.Settings) {
		c.Cors.Origins = []string{"https://app.findaly.co"}
	})
	cookieName := config.Defaults().GetSessionCookieName()

	rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "kim@findaly.co", "password": "Sup3rSecret"}))
	require.Equal(t, http.StatusCreated, rr.Code)

	form := url.Values{"email": {"kim@findaly.co"}, "password": {"Sup3rSecret"}}

	t.Run("default next", func(t *testing.T) {
		rr := ts.do(postForm(RouteLogin, form))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, RouteSettings, rr.Header().Get("Location"))
		require.NotNil(t, responseCookie(rr, cookieName))
	})

	t.Run("wrong password", func(t *testing.T) {
		bad := url.Values{"email": {"kim@findaly.co"}, "password": {"Wr0ngPassword"}, "next": {"//evil.example"}}
		rr := ts.do(postForm(RouteLogin, bad))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		require.Equal(t, "/login?error=Invalid+email+or+password&next=%2Fsettings", rr.Header().Get("Location"))
		require.Nil(t, responseCookie(rr, cookieName))
	})

	t.Run("origins", func(t *testing.T) {
		tests := []struct {
			name   string
			header string
			value  string
			want   int
		}{
			{"same origin", "Origin", "http://example.com", http.StatusSeeOther},
			{"configured origin", "Origin", "https://app.findaly.co", http.StatusSeeOther},
			{"same origin fetch", "Sec-Fetch-Site", "same-origin", http.StatusSeeOther},
			{"other site", "Origin", "https://evil.example", http.StatusForbidden},
			{"opaque origin", "Origin", "null", http.StatusForbidden},
			{"cross-site fetch", "Sec-Fetch-Site", "cross-site", http.StatusForbidden},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := postForm(RouteLogin, form)
				req.Header.Set(tt.header, tt.value)
				rr := ts.do(req)
				require.Equal(t, tt.want, rr.Code)
				if tt.want == http.StatusForbidden {
					require.Nil(t, responseCookie(rr, cookieName))
				}
			})
		}
	})
}

func TestAuthenticate_ChecksPasswordForEveryAccount(t *testing.T) {
	ts := newTestServer(t, nil)

	var hashes []string
	ts.checkPassword = func(password, hash string) bool {
		hashes = append(hashes, hash)
		return users.CheckPasswordHash(password, hash)
	}

	rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "lee@findaly.co", "password": "Sup3rSecret"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	oidcUser := &users.User{Email: "sso@findaly.co", Provider: users.ProviderOIDC}
	require.NoError(t, ts.users.Create(context.Background(), oidcUser))

	tests := []struct {
		name      string
		email     string
		wantDummy bool
	}{
		{"wrong password", "lee@findaly.co", false},
		{"unknown email", "nobody@findaly.co", true},
		{"account without password", "sso@findaly.co", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashes = nil
			u, err := ts.authenticate(context.Background(), tt.email, "Wr0ngPassword")
			require.Nil(t, u)
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
			require.Len(t, hashes, 1)
			require.Equal(t, tt.wantDummy, hashes[0] == users.DummyPasswordHash())
		})
	}
}

func TestServer_ProductionCanonicalHost(t *testing.T) {
	ts := newTestServer(t, func(c *config.Settings) { c.EnvVars.Env = "PROD" })

	rr := ts.do(httptest.NewRequest(http.MethodGet, "http://www.findaly.co/about", nil))
	require.Equal(t, http.StatusPermanentRedirect, rr.Code)
	require.Equal(t, "https://findaly.co/about", rr.Header().Get("Location"))
}

func TestServer_SecureCookiesInProduction(t *testing.T) {
	ts := newTestServer(t, func(c *config.Settings) { c.EnvVars.Env = "PROD" })

	rr := ts.do(postJSON(RouteAPIRegister, map[string]any{"email": "prod@findaly.co", "password": "Sup3rSecret"}))
	require.Equal(t, http.StatusCreated, rr.Code)
	c := responseCookie(rr, config.Defaults().GetSessionCookieName())
	require.NotNil(t, c)
	require.True(t, c.Secure)
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t, nil)

	t.Run("allowed preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, RouteAPILogin, nil)
		req.Header.Set("Origin", "https://findaly.co")
		rr := ts.do(req)
		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Equal(t, "https://findaly.co", rr.Header().Get("Access-Control-Allow-Origin"))
		require.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, RouteAPILogin, nil)
		req.Header.Set("Origin", "https://evil.example")
		rr := ts.do(req)
		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServer_MetricsAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	ts.do(httptest.NewRequest(http.MethodGet, "/admin", nil))

	rr := ts.do(httptest.NewRequest(http.MethodGet, RouteMetrics, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "findaly_route_guard_decisions_total")

	rr = ts.do(httptest.NewRequest(http.MethodGet, RouteHealth, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRecoverMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)
	h := ts.RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(httptest.NewRequest(http.MethodGet, RouteHealth, nil))
	require.NotEmpty(t, rr.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, RouteHealth, nil)
	req.Header.Set(requestIDHeader, "req-123")
	rr = ts.do(req)
	require.Equal(t, "req-123", rr.Header().Get(requestIDHeader))
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		next string
		want string
	}{
		{"", "/fallback"},
		{"/settings", "/settings"},
		{"/admin/users?tab=2", "/admin/users?tab=2"},
		{"//evil.example", "/fallback"},
		{"/\\evil.example", "/fallback"},
		{"https://evil.example", "/fallback"},
		{"settings", "/fallback"},
		{"/ok\r\nSet-Cookie: x=y", "/fallback"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, safeNext(tt.next, "/fallback"), tt.next)
	}
}
