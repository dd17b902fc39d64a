// Package httpapi exposes the lifecycle triggers and the master dataset
// over HTTP. Triggers are serialized: while one scan runs, concurrent
// trigger requests are rejected rather than queued.
package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/google/uuid"

	"github.com/justuju/flowjudge/lifecycle"
	"github.com/justuju/flowjudge/logger"
)

type HttpServer struct {
	orch    *lifecycle.Orchestrator
	router  *chi.Mux
	running sync.Mutex
}

func NewHttpServer(orch *lifecycle.Orchestrator) *HttpServer {
	router := chi.NewRouter()

	httpLogger := httplog.NewLogger("flowjudge", httplog.Options{
		LogLevel:         slog.LevelDebug,
		Concise:          true,
		MessageFieldName: "message",
	})

	router.Use(httplog.RequestLogger(httpLogger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         3000,
	}))

	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.WithRequestID(r.Context(), uuid.New().String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})

	server := &HttpServer{
		orch:   orch,
		router: router,
	}

	server.routes()

	return server
}

func (s *HttpServer) Start(address string) error {
	return http.ListenAndServe(address, s.router)
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

func (s *HttpServer) routes() {
	r := s.router
	r.Post("/submissions", s.ingestSubmission)
	r.Get("/records", s.listRecords)
	r.Post("/triggers/gemini", s.triggerGemini)
	r.Post("/triggers/gemini-batch", s.triggerGeminiBatch)
	r.Post("/triggers/ingest-batches", s.triggerIngestBatches)
	r.Post("/triggers/judge", s.triggerJudge)
	r.Post("/triggers/verdicts", s.triggerVerdicts)
}
