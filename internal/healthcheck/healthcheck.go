// Package healthcheck runs the keep-alive HTTP surface: a single GET /
// returning a static liveness string, enough to satisfy platform pingers.
package healthcheck

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
)

// NormalizeListen turns a configured listen value into an address echo
// accepts. A bare port is allowed; empty means disabled.
func NormalizeListen(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, ":") {
		return ":" + s
	}
	return s
}

type Server struct {
	e *echo.Echo
}

func StartServer(ctx context.Context, logger *slog.Logger, listen, liveness string) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(liveness) == "" {
		liveness = "ok"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, liveness)
	})

	go func() {
		if err := e.Start(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("healthcheck_server_error", "addr", listen, "error", err.Error())
		}
	}()
	logger.Info("healthcheck_server_start", "addr", listen)

	return &Server{e: e}, nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.e == nil {
		return nil
	}
	return s.e.Shutdown(ctx)
}
