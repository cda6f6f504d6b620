package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"cityforall/internal/repository"
	"cityforall/internal/service"
	"cityforall/internal/survey"
	"cityforall/internal/transport/rest/handler"
	"cityforall/internal/transport/rest/middleware"
	"cityforall/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	Flow       *service.FlowService
	Export     repository.ExportRepo
	Graph      *survey.Graph
	WSHub      *ws.Hub
	AdminToken string
	Log        *zap.Logger
}

// NewRouter creates the HTTP surface: the chat WebSocket endpoint and
// the token-guarded operator API.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	adminHandler := handler.NewAdminHandler(c.Export, c.Flow, c.Graph)
	wsHandler := ws.NewHandler(c.WSHub, c.Flow, c.Log)

	adminMW := middleware.NewAdminMiddleware(c.AdminToken)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Chat transport
	v1.HandleFunc("/ws/chat", wsHandler.ChatWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Operator routes (require admin token)
	adminRoutes := v1.NewRoute().Subrouter()
	adminRoutes.Use(adminMW.RequireAdmin)

	adminRoutes.HandleFunc("/export", adminHandler.Export).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/sessions/{chatId}", adminHandler.Session).Methods("GET", "OPTIONS")
	adminRoutes.HandleFunc("/graph", adminHandler.Graph).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
