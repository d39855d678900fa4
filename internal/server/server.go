package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"article-companion-backend/internal/dialogue"
	"article-companion-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/valyala/fastjson"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/global"
	"go.uber.org/zap"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger        *zap.SugaredLogger
	httpServer    *http.Server
	store         *storage.Store
	afterShutdown []func()
}

// NewServer wires handlers for the article, user, login and dialogue
// endpoints over the provided store and dialogue client.
func NewServer(logger *zap.SugaredLogger, store *storage.Store, client *dialogue.Client, opts ...Option) (*Server, error) {
	h := &handler{
		logger:    logger,
		store:     store,
		assistant: client,
		parsers: parsers{
			createArticlePool: fastjson.ParserPool{},
			createUserPool:    fastjson.ParserPool{},
			updateUserPool:    fastjson.ParserPool{},
			loginPool:         fastjson.ParserPool{},
			sendMessagePool:   fastjson.ParserPool{},
		},
	}

	requests := metric.Must(global.Meter("article-companion-backend")).NewInt64Counter(
		"http/server/completed_count",
		metric.WithDescription("Count of completed requests, by HTTP method and path"),
	)

	router := newRouter(h, accessLog(logger.Desugar(), requests))

	cfg := &config{
		httpServer: &http.Server{Handler: router},
	}
	for _, opt := range opts {
		opt.apply(cfg)
	}

	return &Server{
		logger:        logger,
		httpServer:    cfg.httpServer,
		store:         store,
		afterShutdown: cfg.afterShutdown,
	}, nil
}

func newRouter(h *handler, middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares...)

	r.Route("/article", func(r chi.Router) {
		r.Get("/", h.listArticles)
		r.With(requireJSONBody).Post("/", h.createArticle)
		r.Get("/{id}", h.getArticle)
		r.Delete("/{id}", h.deleteArticle)
	})

	r.Route("/user", func(r chi.Router) {
		r.With(requireJSONBody).Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.With(requireJSONBody).Put("/{id}", h.updateUser)
	})

	r.With(requireJSONBody).Post("/login", h.login)

	r.Post("/session", h.startSession)
	r.With(requireJSONBody).Post("/message", h.sendMessage)

	return r
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	s.logger.Info("Closing store")
	s.store.Close()
	s.logger.Info("Store is closed")

	for _, f := range s.afterShutdown {
		f()
	}

	return nil
}
