// Package httpapi serves a read-only JSON view of the registry. It exposes
// no mutating routes: HTTP callers carry no identity the registry can trust.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KevinTran99/MovieContest/internal/domain"
)

// Reader is the read side of the registry.
type Reader interface {
	Contest(ctx context.Context, creator domain.Identity, name string) (domain.Contest, error)
	GetMovies(ctx context.Context, creator domain.Identity, name string) ([]domain.Movie, error)
	HasMovie(ctx context.Context, creator domain.Identity, name, title string) (bool, error)
	GetWinner(ctx context.Context, creator domain.Identity, name string) (string, error)
}

type handler struct {
	reader Reader
	logger *slog.Logger
}

func NewRouter(reader Reader, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{reader: reader, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/health", func(c *gin.Context) {
		success(c, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1/contests/:creator/:name")
	{
		api.GET("", h.getContest)
		api.GET("/movies", h.getMovies)
		api.GET("/movies/:title", h.getMovie)
		api.GET("/winner", h.getWinner)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func contestParams(c *gin.Context) (domain.Identity, string, bool) {
	creator, err := domain.ParseIdentity(c.Param("creator"))
	if err != nil {
		fail(c, http.StatusBadRequest, "creator must be a numeric id")
		return 0, "", false
	}
	return creator, c.Param("name"), true
}

func (h *handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("registry read failed", "path", c.Request.URL.Path, "error", err)
		fail(c, status, "internal error")
		return
	}
	fail(c, status, err.Error())
}

func (h *handler) getContest(c *gin.Context) {
	creator, name, ok := contestParams(c)
	if !ok {
		return
	}
	contest, err := h.reader.Contest(c.Request.Context(), creator, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, contest)
}

func (h *handler) getMovies(c *gin.Context) {
	creator, name, ok := contestParams(c)
	if !ok {
		return
	}
	movies, err := h.reader.GetMovies(c.Request.Context(), creator, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, movies)
}

// getMovie reports whether the contest lists title. A missing title is a
// normal answer, not a 404.
func (h *handler) getMovie(c *gin.Context) {
	creator, name, ok := contestParams(c)
	if !ok {
		return
	}
	title := c.Param("title")
	exists, err := h.reader.HasMovie(c.Request.Context(), creator, name, title)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, gin.H{"title": title, "exists": exists})
}

func (h *handler) getWinner(c *gin.Context) {
	creator, name, ok := contestParams(c)
	if !ok {
		return
	}
	winner, err := h.reader.GetWinner(c.Request.Context(), creator, name)
	if err != nil {
		h.respondError(c, err)
		return
	}
	success(c, gin.H{"winner": winner, "tie": winner == domain.TieResult})
}
