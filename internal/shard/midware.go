package shard

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/codegangsta/negroni"
	"go.uber.org/zap"
)

// Logger is a HTTP request logger for use as negroni middleware.
type Logger struct {
	logger *zap.Logger
}

// NewLogger returns a Logger negroni.Handler that will log requests to logger.
func NewLogger(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

// ServeHTTP implements negroni.Handler
func (l *Logger) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("duration", time.Since(start)),
	}
	if rw, ok := w.(negroni.ResponseWriter); ok {
		fields = append(fields, zap.Int("status", rw.Status()), zap.Int("size", rw.Size()))
	}
	l.logger.Debug("request", fields...)
}

// Recovery is a panic recovery middleware handler for negroni.
type Recovery struct {
	logger    *zap.Logger
	StackSize int
}

// NewRecovery returns a new Recovery negroni.Handler
func NewRecovery(logger *zap.Logger) *Recovery {
	return &Recovery{
		logger:    logger,
		StackSize: 1024 * 8,
	}
}

// ServeHTTP implements negroni.Handler
func (rec *Recovery) ServeHTTP(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	defer func() {
		if err := recover(); err != nil {
			w.WriteHeader(http.StatusInternalServerError)

			stack := make([]byte, rec.StackSize)
			stack = stack[:runtime.Stack(stack, false)]
			rec.logger.Error("recovered from panic",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("panic", fmt.Sprint(err)),
				zap.ByteString("stack", stack))
		}
	}()

	next(w, r)
}
