package daemon

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/api"
	"github.com/leipeng1998/Synology-Chat-Push-Gateway/internal/config"
	"go.uber.org/zap"
)

// Server hosts the HTTP control surface.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds the gin engine and binds it to the configured address.
func NewServer(cfg *config.Config, handler *api.Handler, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.Register(engine)

	return &Server{
		httpServer: &http.Server{Addr: cfg.ListenAddr, Handler: engine},
		logger:     logger,
	}
}

// Start serves requests. Blocks until stopped.
func (s *Server) Start() error {
	s.logger.Info("http server starting", zap.String("addr", s.httpServer.Addr))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop performs a graceful shutdown.
func (s *Server) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	_ = s.httpServer.Shutdown(ctx)
}
