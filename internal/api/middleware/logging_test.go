package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hoangtu0812/pocketfile-lite/internal/domain/model"
)

func TestRequestLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"успех", http.StatusOK, "INFO"},
		{"ошибка клиента", http.StatusNotFound, "WARN"},
		{"ошибка сервера", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})

			req := httptest.NewRequest(http.MethodGet, "/api/files/1/download?token=secret-token", nil)
			req = req.WithContext(WithPrincipal(req.Context(), &model.Principal{UserID: 9}))
			RequestLogger(logger)(inner).ServeHTTP(httptest.NewRecorder(), req)

			if strings.Contains(buf.String(), "secret-token") {
				t.Fatal("токен из query-строки попал в лог")
			}

			var entry map[string]any
			if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
				t.Fatalf("некорректная запись лога: %v", err)
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, ожидается %s", entry["level"], tt.wantLevel)
			}
			if entry["path"] != "/api/files/1/download" {
				t.Errorf("path = %v", entry["path"])
			}
			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, ожидается %d", entry["status"], tt.status)
			}
			if entry["bytes"] != float64(5) {
				t.Errorf("bytes = %v, ожидается 5", entry["bytes"])
			}
			if entry["user_id"] != float64(9) {
				t.Errorf("user_id = %v, ожидается 9", entry["user_id"])
			}
		})
	}
}

// TestRequestLogger_AuthInside — Auth стоит внутри логгера, как в роутере:
// user_id всё равно попадает в запись.
func TestRequestLogger_AuthInside(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := chimw.RequestID(RequestLogger(logger)(Auth(newFakeAuthenticator())(principalEcho())))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("некорректная запись лога: %v", err)
	}
	if entry["user_id"] != float64(2) {
		t.Errorf("user_id = %v, ожидается 2", entry["user_id"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("request_id отсутствует")
	}
}

func TestRequestLogger_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(Auth(newFakeAuthenticator())(principalEcho()))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("некорректная запись лога: %v", err)
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id у анонимного запроса: %v", entry["user_id"])
	}
	if entry["status"] != float64(http.StatusUnauthorized) {
		t.Errorf("status = %v, ожидается 401", entry["status"])
	}
}

func TestLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusFound, slog.LevelInfo},
		{http.StatusForbidden, slog.LevelWarn},
		{http.StatusRequestEntityTooLarge, slog.LevelWarn},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := levelForStatus(tt.status); got != tt.want {
			t.Errorf("levelForStatus(%d) = %v, ожидается %v", tt.status, got, tt.want)
		}
	}
}
