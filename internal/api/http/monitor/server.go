package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	"github.com/oshokin/oneshot-layer/internal/hid"
	"github.com/oshokin/oneshot-layer/internal/logger"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Service is the engine view the endpoints read from.
type Service interface {
	Status(ctx context.Context) (*domain.Status, error)
	Emissions(ctx context.Context, limit int) ([]hid.Emission, error)
}

// Server serves the monitoring endpoints.
type Server struct {
	// echo routes requests.
	echo *echo.Echo
	// service provides status and emissions.
	service Service
	// clock measures uptime.
	clock clockwork.Clock
	// startTime is when the server was created.
	startTime time.Time
}

// NewServer creates the monitoring server.
func NewServer(service Service, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:      e,
		service:   service,
		clock:     clock,
		startTime: clock.Now(),
	}

	e.GET("/health/live", s.handleLiveness)
	e.GET("/status", s.handleStatus)
	e.GET("/emissions", s.handleEmissions)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on lis until ctx is canceled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.echo.Listener = lis

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "Monitor shutdown failed", "error", err)
		}
	}()

	logger.InfoKV(ctx, "Monitor listening", "listen_address", lis.Addr().String())

	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve monitor: %w", err)
	}

	<-done

	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.service.Status(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	return c.JSON(http.StatusOK, status.AsMap())
}

func (s *Server) handleEmissions(c echo.Context) error {
	limit := 0

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}

		limit = n
	}

	emissions, err := s.service.Emissions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	list, err := pb.EmissionsToProto(emissions)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, list.AsSlice())
}
