package edge

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORSMiddleware(t *testing.T) {
	h := corsMiddleware([]string{"http://localhost:5173"}, okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/health", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("credentials header missing")
		}
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/health", nil)
		r.Header.Set("Origin", "http://evil.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q for unknown origin", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		r := httptest.NewRequest("OPTIONS", "/game/me", nil)
		r.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d", w.Code)
		}
	})
}

func TestRateLimit(t *testing.T) {
	m := &Metrics{}
	// 每分钟 60 个，突发也是 60：第 61 个立即被拒
	h := rateLimit(newIPLimiter(60), m, okHandler())

	var lastStatus int
	for i := 0; i < 61; i++ {
		r := httptest.NewRequest("GET", "/health", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		lastStatus = w.Code
	}
	if lastStatus != http.StatusTooManyRequests {
		t.Fatalf("61st request status = %d, want 429", lastStatus)
	}

	// 不同 IP 不受影响
	r := httptest.NewRequest("GET", "/health", nil)
	r.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("other ip status = %d", w.Code)
	}
}

func TestAccessLogPreservesStatus(t *testing.T) {
	h := accessLog(zap.NewNop().Sugar(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	}))
	r := httptest.NewRequest("GET", "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}
