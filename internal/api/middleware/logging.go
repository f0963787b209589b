// logging.go — журнал HTTP-запросов через slog.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// requestLogKey — ключ записи журнала текущего запроса.
const requestLogKey contextKey = "request_log"

// requestLog заполняется по ходу обработки: Auth стоит глубже логгера
// и через контекст вверх ничего не передаёт, поэтому пишет сюда.
type requestLog struct {
	userID int64
}

// noteUser отмечает пользователя в записи журнала, если она есть.
func noteUser(ctx context.Context, userID int64) {
	if entry, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		entry.userID = userID
	}
}

// levelForStatus: 5xx — ERROR, 4xx — WARN, остальное INFO.
func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger пишет одну запись на запрос после его завершения.
// Пишется только путь: в query-строке может быть токен.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)
			entry := &requestLog{}
			if p := PrincipalFromContext(r.Context()); p != nil {
				entry.userID = p.UserID
			}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestLogKey, entry)))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				attrs = append(attrs, slog.String("request_id", id))
			}
			if entry.userID != 0 {
				attrs = append(attrs, slog.Int64("user_id", entry.userID))
			}

			logger.LogAttrs(r.Context(), levelForStatus(rec.status), "HTTP запрос", attrs...)
		})
	}
}
