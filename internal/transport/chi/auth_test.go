package chi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authProbe(t *testing.T, middleware func(http.Handler) http.Handler, path, header string) *http.Response {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	middleware(next).ServeHTTP(rec, req)
	return rec.Result()
}

func TestBearerAuth_ValidToken(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})

	resp := authProbe(t, mw, "/v1/status", "Bearer secret-key")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestBearerAuth_MissingHeader(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})

	resp := authProbe(t, mw, "/v1/status", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBearerAuth_WrongScheme(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})

	resp := authProbe(t, mw, "/v1/status", "Basic c2VjcmV0")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBearerAuth_InvalidToken(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})

	resp := authProbe(t, mw, "/v1/status", "Bearer wrong-key")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestBearerAuth_ExemptPaths(t *testing.T) {
	mw := BearerAuthMiddleware([]string{"secret-key"})

	for _, path := range []string{"/health", "/metrics"} {
		resp := authProbe(t, mw, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s should bypass auth, got %d", path, resp.StatusCode)
		}
	}
}

func TestBearerAuth_DisabledWithNoKeys(t *testing.T) {
	mw := BearerAuthMiddleware(nil)

	resp := authProbe(t, mw, "/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("empty key set should disable auth, got %d", resp.StatusCode)
	}
}

func TestBearerAuth_EmptyKeysIgnored(t *testing.T) {
	mw := BearerAuthMiddleware([]string{""})

	resp := authProbe(t, mw, "/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("blank keys should count as no keys, got %d", resp.StatusCode)
	}
}
