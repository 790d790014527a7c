package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/roomdesk/apiserver/config"
	"github.com/roomdesk/apiserver/internal/db"
	"github.com/roomdesk/apiserver/internal/handlers"
	"github.com/roomdesk/apiserver/internal/mailer"
	"github.com/roomdesk/apiserver/internal/mq"
	"github.com/roomdesk/apiserver/internal/services"
	"github.com/roomdesk/apiserver/internal/storage"
	"github.com/roomdesk/apiserver/internal/store"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      mq.Backend
	logger     *slog.Logger
}

// New connects to every backing service and wires the HTTP routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jwtSecret := strings.TrimSpace(cfg.JWT.Secret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var queue mq.Backend
	if strings.EqualFold(cfg.Mail.Transport, "queue") {
		queue, err = mq.Open(ctx, cfg.MQ)
		if err != nil {
			_ = dbConn.Close()
			return nil, fmt.Errorf("open message queue: %w", err)
		}
	}

	sender, err := mailer.New(cfg.Mail, queue, logger)
	if err != nil {
		closeAll(dbConn, queue)
		return nil, err
	}

	archive, err := storage.OpenArchive(ctx, cfg.Storage)
	if err != nil {
		closeAll(dbConn, queue)
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	roomRepo := store.NewRoomRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)
	reservationRepo := store.NewReservationRepository(dbConn)

	loc := cfg.Booking.Location()
	roomService := services.NewRoomService(roomRepo)
	userService := services.NewUserService(userRepo)
	reservationService := services.NewReservationService(reservationRepo, roomRepo, services.ReservationServiceConfig{
		Validator: services.NewValidator(loc, cfg.Booking.LeadTime, cfg.Booking.BlockingStatuses),
		Codes:     services.NewCodeGenerator(cfg.Booking.CodeLength, cfg.Booking.CodeMaxAttempts),
		Notifier:  services.NewNotifier(sender, cfg.PublicURL, logger),
		Clock:     services.SystemClock,
		HoldTTL:   cfg.Booking.HoldTTL,
		Logger:    logger,
	})

	var exportService *services.ExportService
	if archive != nil {
		exportService = services.NewExportService(reservationRepo, roomRepo, archive, services.SystemClock, loc, logger)
	}

	authHandler := handlers.NewAuthHandler(userService, jwtSecret, cfg.JWT.TokenTTL, logger)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, authHandler, logger))
	})
	router.Route("/rooms", func(r chi.Router) {
		handlers.RoomRouter(r, handlers.NewRoomHandler(roomService, logger), authHandler)
	})
	router.Route("/reservations", func(r chi.Router) {
		handlers.ReservationRouter(r, handlers.NewReservationHandler(reservationService, exportService, services.SystemClock, logger), authHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown drains in-flight requests and releases the backing services.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeAll(s.db, s.queue)
	return err
}

func closeAll(dbConn *sql.DB, queue mq.Backend) {
	if dbConn != nil {
		_ = dbConn.Close()
	}
	if queue != nil {
		_ = queue.Close()
	}
}
