package router

import (
	"encoding/json"
	"log"
	"net/http"
	"trackgate/internal/api/handler"
	"trackgate/internal/api/middleware"
)

type Options struct {
	JWTSecret   string
	APIUser     string
	APIPassword string
	Commands    handler.Commander
	Sessions    handler.SessionDirectory
	Positions   handler.PositionLookup
	Devices     handler.DeviceStore // optional
	Console     http.Handler        // optional websocket console
	Logger      *log.Logger
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(opts.JWTSecret, opts.APIUser, opts.APIPassword)
	commandHandler := handler.NewCommandHandler(opts.Commands, opts.Logger)
	sessionHandler := handler.NewSessionHandler(opts.Sessions)
	positionHandler := handler.NewPositionHandler(opts.Positions)
	authMiddleware := middleware.NewAuthMiddleware(opts.JWTSecret)
	logging := middleware.LoggingMiddleware(opts.Logger)

	mux := http.NewServeMux()

	public := func(handler http.Handler) http.Handler {
		return middleware.CORSMiddleware(logging(handler))
	}
	withMiddleware := func(handler http.Handler) http.Handler {
		return public(authMiddleware.Authenticate(handler))
	}
	method := func(m string, h http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != m {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		})
	}

	// Health check endpoint
	mux.Handle("/health", public(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":   "ok",
			"sessions": len(opts.Sessions.Sessions()),
		})
	})))

	mux.Handle("/api/auth/token", public(method(http.MethodPost, authHandler.Token)))

	mux.Handle("/api/commands", withMiddleware(method(http.MethodPost, commandHandler.Push)))

	mux.Handle("/api/sessions/list", withMiddleware(method(http.MethodGet, sessionHandler.List)))
	mux.Handle("/api/sessions/get", withMiddleware(method(http.MethodGet, sessionHandler.Get)))

	mux.Handle("/api/positions/list", withMiddleware(method(http.MethodGet, positionHandler.GetPositions)))
	mux.Handle("/api/positions/latest", withMiddleware(method(http.MethodGet, positionHandler.GetLatestPosition)))

	if opts.Devices != nil {
		deviceHandler := handler.NewDeviceHandler(opts.Devices)
		mux.Handle("/api/devices/list", withMiddleware(method(http.MethodGet, deviceHandler.GetDevices)))
		mux.Handle("/api/devices/get", withMiddleware(method(http.MethodGet, deviceHandler.GetDevice)))
		mux.Handle("/api/devices/events", withMiddleware(method(http.MethodGet, deviceHandler.GetEvents)))
	}

	if opts.Console != nil {
		mux.Handle("/ws/console", withMiddleware(opts.Console))
	}

	return mux
}
