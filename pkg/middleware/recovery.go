package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	apperrors "github.com/Frida144/site-segnorito/pkg/errors"
	"github.com/Frida144/site-segnorito/pkg/httputil"
	"github.com/Frida144/site-segnorito/pkg/logger"
)

// Recovery turns a panic in a handler into a 500 response and a log line.
// When the handler had already started its response only the log line is
// written.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := wrapWriter(w, r)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				l.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				if ww.Status() != 0 {
					return
				}
				httputil.WriteError(ww, r, apperrors.Internal(fmt.Errorf("panic: %v", rec)), logger.Discard())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
