// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/yanmxa/finsight/internal/chat"
	"github.com/yanmxa/finsight/internal/config"
	"github.com/yanmxa/finsight/internal/log"
)

const shutdownTimeout = 10 * time.Second

// Server is the HTTP surface of the backend.
type Server struct {
	cfg  *config.Config
	svc  *chat.Service
	echo *echo.Echo
}

// New builds the echo instance with middleware and routes.
func New(cfg *config.Config, svc *chat.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	e.Use(middleware.Recover())
	e.Use(accessLog())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.AllowedOrigins,
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			headerLocalInference,
			headerLocalProvider,
			headerLocalModel,
			headerResponseFormat,
		},
		ExposeHeaders: []string{headerSessionID},
	}))

	s := &Server{cfg: cfg, svc: svc, echo: e}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.health)

	api := s.echo.Group("/api", s.requireAuth)
	api.POST("/chat", s.chat)
	api.POST("/complete", s.complete)
	api.POST("/cards", s.cards)
	api.GET("/sessions/:id/messages", s.sessionMessages)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Logger().Info("listening", zap.String("addr", s.cfg.HTTP.Addr), zap.String("mode", string(s.cfg.Mode)))
		errCh <- s.echo.Start(s.cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Logger().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// accessLog logs every request through the process logger.
func accessLog() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote", v.RemoteIP),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
				log.Logger().Warn("request", fields...)
				return nil
			}
			log.Logger().Info("request", fields...)
			return nil
		},
	})
}
