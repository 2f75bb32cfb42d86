package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// RouterOptions configures the outer middleware.
type RouterOptions struct {
	AllowedOrigins []string
	AccessLog      io.Writer
}

// NewRouter wires the routes with CORS, panic recovery and an access log.
func NewRouter(h *Handler, logger *slog.Logger, opts RouterOptions) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	route(r, "/healthz", http.MethodGet, h.Health)
	route(r, "/api/availability", http.MethodGet, h.GetAvailability)
	route(r, "/api/bookings", http.MethodPost, h.CreateBooking)
	route(r, "/api/config", http.MethodGet, h.GetConfig)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var handler http.Handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(r)

	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError)),
	)(handler)

	if opts.AccessLog != nil {
		handler = handlers.CombinedLoggingHandler(opts.AccessLog, handler)
	}
	return handler
}

// route registers fn for method on path and answers every other method on
// the same path with 405. mux drops a method mismatch once a later route
// fails on its path, so the fallback has to sit right behind its route.
func route(r *mux.Router, path, method string, fn http.HandlerFunc) {
	r.HandleFunc(path, fn).Methods(method)
	r.HandleFunc(path, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", method)
		methodNotAllowed(w, nil)
	})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSONError(w, NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	_ = writeJSONError(w, NewHTTPError(http.StatusNotFound, "not found"))
}
