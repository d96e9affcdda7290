package dashboard

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/paaavkata/crypto-dashboard/pkg/models"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Snapshotter exposes the current view state.
type Snapshotter interface {
	Snapshot() *models.ViewState
}

type Server struct {
	symbols []models.Symbol
	store   Snapshotter
	hub     *Hub
	health  http.Handler
	metrics http.Handler
	logger  *logrus.Logger

	showTrades bool
}

// NewServer wires the dashboard routes. health and metrics may be nil.
func NewServer(symbols []models.Symbol, store Snapshotter, health, metrics http.Handler, logger *logrus.Logger) *Server {
	s := &Server{
		symbols: symbols,
		store:   store,
		health:  health,
		metrics: metrics,
		logger:  logger,
	}
	s.hub = NewHub(s.pagePayload, logger)
	return s
}

// WithTrades enables the recent-trades list on every panel. Call before
// serving.
func (s *Server) WithTrades(enabled bool) *Server {
	s.showTrades = enabled
	return s
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Publish pushes state to every connected browser. It is registered as a
// store subscriber.
func (s *Server) Publish(state *models.ViewState) {
	payload, err := json.Marshal(s.page(state))
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode dashboard update")
		return
	}
	s.hub.Broadcast(payload)
}

func (s *Server) pagePayload() ([]byte, error) {
	return json.Marshal(s.page(s.store.Snapshot()))
}

func (s *Server) page(state *models.ViewState) Page {
	page := NewPage(s.symbols, state)
	page.ShowTrades = s.showTrades
	return page
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	if s.health != nil {
		mux.Handle("/health", s.health)
		mux.Handle("/ready", s.health) // Kubernetes readiness probe
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// StartServer starts the hub and serves the dashboard on port in the
// background.
func (s *Server) StartServer(port string) *http.Server {
	s.hub.Start()

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      s.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		s.logger.WithField("port", port).Info("Starting dashboard server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("Dashboard server failed")
		}
	}()

	return server
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page := s.page(s.store.Snapshot())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		s.logger.WithError(err).Error("Failed to render dashboard")
	}
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.page(s.store.Snapshot())); err != nil {
		s.logger.WithError(err).Error("Failed to encode dashboard view")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
