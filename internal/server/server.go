// Package server exposes the chat, persona, document and quiz services over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Patelhetu-177/SkillSphere/internal/auth"
	"github.com/Patelhetu-177/SkillSphere/internal/chat"
	"github.com/Patelhetu-177/SkillSphere/internal/documents"
	"github.com/Patelhetu-177/SkillSphere/internal/metrics"
	"github.com/Patelhetu-177/SkillSphere/internal/quiz"
)

// Deps are the services behind the HTTP surface.
type Deps struct {
	Chat      *chat.Service
	Personas  *chat.PersonaService
	Documents *documents.Service
	Quiz      *quiz.Service
	Verifier  *auth.Verifier
	Registry  *prometheus.Registry
}

// Options configures the listener.
type Options struct {
	Addr        string
	CORSOrigins []string
}

// Server is the SkillSphere HTTP API server.
type Server struct {
	deps Deps
	http *http.Server
}

// New creates a new Server.
func New(deps Deps, opts Options) *Server {
	s := &Server{deps: deps}
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("http server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err.Error())
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) routes(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(withRecovery(), withLogging(), withCORS(opts.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.deps.Registry)))
	}

	api := r.Group("/", auth.Middleware(s.deps.Verifier))
	if s.deps.Chat != nil {
		api.POST("/chat/:conversationId", s.handleChat)
		api.GET("/chat/:conversationId/messages", s.handleMessages)
		api.DELETE("/chat/message/:messageId", s.handleDeleteMessage)
	}
	if s.deps.Personas != nil {
		api.POST("/personas", s.handleCreatePersona)
		api.GET("/personas", s.handleListPersonas)
		api.GET("/personas/:id", s.handleGetPersona)
		api.PATCH("/personas/:id", s.handleUpdatePersona)
		api.DELETE("/personas/:id", s.handleDeletePersona)
	}
	if s.deps.Documents != nil {
		api.POST("/documents", s.handleIngestDocument)
		api.GET("/documents", s.handleListDocuments)
		api.POST("/documents/query", s.handleQueryDocument)
		api.GET("/documents/:id", s.handleGetDocument)
		api.PATCH("/documents/:id", s.handleUpdateDocument)
		api.DELETE("/documents/:id", s.handleDeleteDocument)
	}
	if s.deps.Quiz != nil {
		api.POST("/quiz/generate", s.handleGenerateQuiz)
		api.GET("/quiz/history", s.handleQuizHistory)
		api.GET("/quiz/popular", s.handlePopularQuizzes)
		api.GET("/quiz/:id", s.handleGetQuiz)
		api.POST("/quiz/:id/submit", s.handleSubmitQuiz)
		api.POST("/questions/similar", s.handleSimilarQuestions)
	}
	return r
}

func withLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP())
	}
}

func withCORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// withRecovery turns panics into 500s, except http.ErrAbortHandler which is re-raised so
// net/http drops the connection of a stream that already started.
func withRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}
			slog.Error("http handler panic", "path", c.Request.URL.Path, "error", r)
			if !c.Writer.Written() {
				_, msg := chat.StatusFor(fmt.Errorf("panic: %v", r))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
				return
			}
			c.Abort()
		}()
		c.Next()
	}
}
