package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"live-fixture-service/config"
	"live-fixture-service/logger"
	"live-fixture-service/pkg/common"
	"live-fixture-service/services"
)

type Server struct {
	config     *config.Config
	controller *services.LiveMatchController
	roster     *services.RosterService
	wsHub      *Hub
	auth       *Authenticator
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg *config.Config, controller *services.LiveMatchController, roster *services.RosterService, hub *Hub) *Server {
	return &Server{
		config:     cfg,
		controller: controller,
		roster:     roster,
		wsHub:      hub,
		auth:       NewAuthenticator(cfg.JWTSecret, cfg.OperatorRole),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 观众端跨域订阅
			},
		},
	}
}

// Handler 路由 + CORS
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/fixtures/{id}", s.handleGetFixture).Methods("GET")
	api.HandleFunc("/fixtures/{id}/events", s.handleGetEvents).Methods("GET")
	api.HandleFunc("/fixtures/{id}/consistency", s.handleGetConsistency).Methods("GET")
	api.HandleFunc("/teams/{team}/players", s.handleGetTeamPlayers).Methods("GET")
	api.HandleFunc("/players/{id}/stats", s.handleGetPlayerStats).Methods("GET")

	// 操作员接口
	ops := api.PathPrefix("/fixtures/{id}").Subrouter()
	ops.Use(s.auth.RequireOperator, auditOperator)
	ops.HandleFunc("/goals", s.handleRecordGoal).Methods("POST")
	ops.HandleFunc("/goals/{event_id}", s.handleCancelGoal).Methods("DELETE")
	ops.HandleFunc("/cards", s.handleRecordCard).Methods("POST")
	ops.HandleFunc("/substitutions", s.handleRecordSubstitution).Methods("POST")
	ops.HandleFunc("/score", s.handleAdjustScore).Methods("POST")
	ops.HandleFunc("/reconcile", s.handleReconcile).Methods("POST")
	ops.HandleFunc("/clock/start", s.handleClockStart).Methods("POST")
	ops.HandleFunc("/clock/pause", s.handleClockPause).Methods("POST")
	ops.HandleFunc("/clock/end", s.handleClockEnd).Methods("POST")
	ops.HandleFunc("/clock/adjust", s.handleClockAdjust).Methods("POST")
	ops.HandleFunc("/clock/reset", s.handleClockReset).Methods("POST")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	})

	return c.Handler(router)
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Printf("[Server] Listening on :%s", s.config.Port)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("[Server] shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"time":    time.Now().Unix(),
		"clients": s.wsHub.ClientCount(),
	})
}

// handleWebSocket WebSocket连接处理
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("[WebSocket] upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:        s.wsHub,
		conn:       conn,
		send:       make(chan []byte, 256),
		fixtureIDs: make(map[string]bool),
	}

	if !client.hub.registerClient(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("[Server] Failed to encode response: %v", err)
	}
}

func errorBody(code, message string) map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
}

// statusFor 错误类别 → HTTP 状态码
func statusFor(err error) (int, string) {
	code := common.CodeOf(err)
	switch code {
	case common.CodeValidation:
		return http.StatusBadRequest, code
	case common.CodeNotFound:
		return http.StatusNotFound, code
	case common.CodeInvalidTransition:
		return http.StatusConflict, code
	case common.CodePartialFailure:
		return http.StatusInternalServerError, code
	}
	return http.StatusInternalServerError, common.CodeInternal
}

func writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	message := err.Error()
	if code == common.CodeInternal {
		logger.Errorf("[Server] ❌ internal error: %v", err)
		message = "internal error"
	}
	writeJSON(w, status, errorBody(code, message))
}
