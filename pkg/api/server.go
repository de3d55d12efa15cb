// Package api exposes the orchestrated domain operations over HTTP. The
// surface is deliberately thin: request decoding, rate limiting and domain
// error mapping live here, everything else belongs to the orchestrator.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/connecthub/connecthub/pkg/config"
	"github.com/connecthub/connecthub/pkg/health"
	"github.com/connecthub/connecthub/pkg/model"
	"github.com/connecthub/connecthub/pkg/observability/logger"
	"github.com/connecthub/connecthub/pkg/observability/metrics"
	"github.com/connecthub/connecthub/pkg/orchestrator"
	"github.com/connecthub/connecthub/pkg/store/storeerr"
)

// Service is the orchestration surface the API depends on.
type Service interface {
	CreateUser(ctx context.Context, profile model.UserProfile) (model.User, error)
	CreatePost(ctx context.Context, input model.PostInput) (model.Post, error)
	CreateFollow(ctx context.Context, followerID, followingID string) (model.Follow, error)
	RemoveFollow(ctx context.Context, followerID, followingID string) error
	UploadMedia(ctx context.Context, userID string, payload []byte, name, contentType string) (model.MediaUpload, error)
	GetUserFeed(ctx context.Context, userID string, page, pageSize int) (model.FeedPage, error)
	GetFriendRecommendations(ctx context.Context, userID string, limit int) ([]model.Recommendation, error)
	Health(ctx context.Context) health.AggregatedResult
}

// Server is the HTTP front for the orchestration layer.
type Server struct {
	service Service
	logger  logger.Logger
	metrics *metrics.Registry
	config  config.HTTPConfig
	engine  *gin.Engine
	limiter *rate.Limiter
	httpSrv *http.Server
}

// NewServer builds the gin engine and routes.
func NewServer(cfg config.HTTPConfig, svc Service, log logger.Logger, reg *metrics.Registry) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	s := &Server{
		service: svc,
		logger:  log,
		metrics: reg,
		config:  cfg,
		engine:  engine,
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	engine.Use(s.requestID(), s.recovery(), s.rateLimit())
	s.registerRoutes()
	return s
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.engine.Group("/v1")
	v1.POST("/users", s.handleCreateUser)
	v1.POST("/posts", s.handleCreatePost)
	v1.POST("/follows", s.handleCreateFollow)
	v1.DELETE("/follows", s.handleRemoveFollow)
	v1.POST("/users/:id/media", s.handleUploadMedia)
	v1.GET("/users/:id/feed", s.handleGetFeed)
	v1.GET("/users/:id/recommendations", s.handleGetRecommendations)
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	s.logger.Info("HTTP server listening", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", "path", c.FullPath(), "panic", fmt.Sprintf("%v", rec))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	result := s.service.Health(c.Request.Context())
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var profile model.UserProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := s.service.CreateUser(c.Request.Context(), profile)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleCreatePost(c *gin.Context) {
	var input model.PostInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	post, err := s.service.CreatePost(c.Request.Context(), input)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

type followRequest struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

func (s *Server) handleCreateFollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	follow, err := s.service.CreateFollow(c.Request.Context(), req.FollowerID, req.FollowingID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, follow)
}

func (s *Server) handleRemoveFollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := s.service.RemoveFollow(c.Request.Context(), req.FollowerID, req.FollowingID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUploadMedia(c *gin.Context) {
	userID := c.Param("id")

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field is required"})
		return
	}
	defer file.Close()

	if s.config.MaxUploadBytes > 0 && header.Size > s.config.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
		return
	}

	var reader io.Reader = file
	if s.config.MaxUploadBytes > 0 {
		reader = io.LimitReader(file, s.config.MaxUploadBytes+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return
	}
	if s.config.MaxUploadBytes > 0 && int64(len(payload)) > s.config.MaxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload exceeds size limit"})
		return
	}

	upload, err := s.service.UploadMedia(c.Request.Context(), userID, payload,
		header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, upload)
}

func (s *Server) handleGetFeed(c *gin.Context) {
	userID := c.Param("id")
	page := queryInt(c, "page", 0)
	pageSize := queryInt(c, "page_size", 20)

	feed, err := s.service.GetUserFeed(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (s *Server) handleGetRecommendations(c *gin.Context) {
	userID := c.Param("id")
	limit := queryInt(c, "limit", 10)

	recommendations, err := s.service.GetFriendRecommendations(c.Request.Context(), userID, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recommendations": recommendations})
}

// writeError maps domain errors onto HTTP statuses. Secondary-step failures
// never reach this point; only primary and validation failures do.
func (s *Server) writeError(c *gin.Context, err error) {
	var validationErr *orchestrator.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.Is(err, orchestrator.ErrInvalidFollow):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "cannot follow yourself"})
	case errors.Is(err, orchestrator.ErrDuplicateFollow):
		c.JSON(http.StatusConflict, gin.H{"error": "follow already exists"})
	case storeerr.IsDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
	case storeerr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, orchestrator.ErrNotReady), errors.Is(err, orchestrator.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	default:
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
