package httpx

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csrfTestHandler(cfg CSRFConfig) http.Handler {
	return CSRFProtection(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(GetCSRFToken(r)))
	}))
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// issueCSRFToken performs a GET and returns the token the middleware issued.
func issueCSRFToken(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	resp := rec.Result()
	defer resp.Body.Close()
	c := findCookie(resp, DefaultCSRFCookieName)
	require.NotNil(t, c, "csrf cookie not issued")
	require.NotEmpty(t, c.Value)
	return c.Value
}

func TestCSRFProtection_IssuesTokenOnSafeRequest(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	resp := rec.Result()
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, rec.Code)
	c := findCookie(resp, DefaultCSRFCookieName)
	require.NotNil(t, c)
	assert.Equal(t, c.Value, rec.Body.String(), "token in context should match the cookie")
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.False(t, c.HttpOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, int(DefaultCSRFMaxAge.Seconds()), c.MaxAge)
}

func TestCSRFProtection_SafeMethodsExempt(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(method, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestCSRFProtection_Validation(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})
	token := issueCSRFToken(t, h)

	tests := []struct {
		name   string
		build  func() *http.Request
		status int
	}{
		{
			name: "no cookie no token",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/login", nil)
			},
			status: http.StatusForbidden,
		},
		{
			name: "cookie without submitted token",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/login", nil)
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
				return req
			},
			status: http.StatusForbidden,
		},
		{
			name: "header token",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/login", nil)
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
				req.Header.Set(DefaultCSRFHeaderName, token)
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "form token",
			build: func() *http.Request {
				form := url.Values{DefaultCSRFFormField: {token}, "email": {"a@b.co"}}
				req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
				return req
			},
			status: http.StatusOK,
		},
		{
			name: "mismatched header token",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/login", nil)
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
				req.Header.Set(DefaultCSRFHeaderName, "other")
				return req
			},
			status: http.StatusForbidden,
		},
		{
			name: "form token ignored for json bodies",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(DefaultCSRFFormField+"="+token))
				req.Header.Set("Content-Type", "application/json")
				req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: token})
				return req
			},
			status: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.build())
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestCSRFProtection_Exempt(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{
		Exempt: func(r *http.Request) bool { return r.URL.Path == "/hook" },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCSRFProtection_SecureCookieBehindProxy(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{CookieDomain: "synergy.example"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "http, HTTPS")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	defer resp.Body.Close()

	c := findCookie(resp, DefaultCSRFCookieName)
	require.NotNil(t, c)
	assert.True(t, c.Secure)
	assert.Equal(t, "synergy.example", c.Domain)
}

func TestCSRFProtection_CookieNotReissued(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	resp := rec.Result()
	defer resp.Body.Close()

	assert.Nil(t, findCookie(resp, DefaultCSRFCookieName))
	assert.Equal(t, testCSRF, rec.Body.String())
}

func TestCSRFProtection_MalformedCookieReplaced(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})

	for _, value := range []string{"existing", "c2hvcnQ", "not base64!"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: value})
		req.Header.Set(DefaultCSRFHeaderName, value)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		resp := rec.Result()
		_ = resp.Body.Close()

		assert.Equal(t, http.StatusForbidden, rec.Code, "value %q", value)
		c := findCookie(resp, DefaultCSRFCookieName)
		require.NotNil(t, c, "value %q", value)
		assert.NotEqual(t, value, c.Value)
	}
}

func TestCSRFProtection_CrossSiteRefused(t *testing.T) {
	h := csrfTestHandler(CSRFConfig{})
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	req.Header.Set(DefaultCSRFHeaderName, testCSRF)
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCSRFProtection_MultipartFormField(t *testing.T) {
	h := CSRFProtection(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The handler still sees the parsed upload.
		_, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField(DefaultCSRFFormField, testCSRF))
	part, err := mw.CreateFormFile("file", "me.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("\x89PNG"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetCSRFToken_NoToken(t *testing.T) {
	assert.Empty(t, GetCSRFToken(httptest.NewRequest(http.MethodGet, "/", nil)))
}
