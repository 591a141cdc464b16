// internal/middleware/logging.go

package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// statusRecorder captures the response status and size. It must implement
// http.Hijacker itself since the websocket accept asserts it directly.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, brw, err := http.NewResponseController(r.ResponseWriter).Hijack()
	if err == nil && r.status == 0 {
		r.status = http.StatusSwitchingProtocols
	}
	return conn, brw, err
}

// LogMiddleware logs each request with its status, size and duration. Server
// errors log at error level, client errors at warn.
func LogMiddleware(logger logrus.FieldLogger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			entry := logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"bytes":      rec.bytes,
				"duration":   time.Since(start).String(),
				"remote":     r.RemoteAddr,
			})
			switch {
			case rec.status >= 500:
				entry.Error("HTTP Request")
			case rec.status >= 400:
				entry.Warn("HTTP Request")
			default:
				entry.Info("HTTP Request")
			}
		})
	}
}

// LogWebSocketConnect logs an accepted matchmaking socket.
func LogWebSocketConnect(logger logrus.FieldLogger, sessionID uuid.UUID, r *http.Request) {
	logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"remote":     r.RemoteAddr,
		"path":       r.URL.Path,
	}).Info("WebSocket connected")
}

// LogWebSocketDisconnect logs a closed socket. Normal closures carry no error.
func LogWebSocketDisconnect(logger logrus.FieldLogger, sessionID uuid.UUID, r *http.Request, err error) {
	entry := logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"remote":     r.RemoteAddr,
		"path":       r.URL.Path,
	})
	if err != nil {
		entry.WithError(err).Info("WebSocket disconnected")
		return
	}
	entry.Info("WebSocket disconnected")
}
