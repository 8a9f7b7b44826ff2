package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/pixshare/pixshare/internal/auth"
	"github.com/pixshare/pixshare/internal/config"
	"github.com/pixshare/pixshare/internal/metrics"
	"github.com/pixshare/pixshare/internal/middleware"
	"github.com/pixshare/pixshare/internal/presign"
	"github.com/pixshare/pixshare/internal/share"
)

// Server represents the PixShare share-link server
type Server struct {
	config         *config.Config
	httpServer     *http.Server
	store          share.Store
	shareManager   share.Manager
	resolver       *share.Resolver
	verifier       *auth.Verifier
	metricsManager *metrics.Manager
	startTime      time.Time
}

// New creates a new PixShare server
func New(cfg *config.Config) (*Server, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create share store: %w", err)
	}

	issuer, err := newIssuer(cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create presign issuer: %w", err)
	}

	server := &Server{
		config:         cfg,
		store:          store,
		shareManager:   share.NewManager(store),
		resolver:       share.NewResolver(store, issuer),
		verifier:       auth.NewVerifier(cfg.Auth.JWTSecret),
		metricsManager: metrics.NewManager(),
		startTime:      time.Now(),
	}

	server.httpServer = &http.Server{
		Addr:         cfg.Listen,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		Handler:      server.buildHandler(),
	}

	return server, nil
}

// newStore builds the configured share record store
func newStore(cfg *config.Config) (share.Store, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		dbPath := filepath.Join(cfg.DataDir, "pixshare.db")
		// busy_timeout makes concurrent writers queue instead of failing
		// with SQLITE_BUSY.
		db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return share.NewSQLiteStore(db)
	default:
		return share.NewBadgerStore(share.BadgerOptions{
			DataDir:    cfg.DataDir,
			SyncWrites: true, // a revoked link must not resurface after a crash
			Logger:     logrus.StandardLogger(),
		})
	}
}

// newIssuer builds the configured presigned URL issuer
func newIssuer(cfg config.IssuerConfig) (share.Issuer, error) {
	switch cfg.Backend {
	case "s3":
		return presign.NewS3Issuer(presign.S3Options{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Endpoint:  cfg.Endpoint,
		})
	default:
		return presign.NewLocalIssuer(presign.LocalOptions{
			Endpoint:  cfg.Endpoint,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
	}
}

// buildHandler assembles the router and middleware chain
func (s *Server) buildHandler() http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.Tracing())
	router.Use(middleware.CORS(s.config.CORS.AllowedOrigin))
	router.Use(middleware.Logging())
	if s.config.Metrics.Enable {
		router.Use(s.metricsManager.Middleware())
	}

	s.registerRoutes(router)

	return handlers.RecoveryHandler()(router)
}

// Start starts the server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	logrus.WithFields(logrus.Fields{
		"address":  s.config.Listen,
		"data_dir": s.config.DataDir,
		"store":    s.config.Store.Backend,
		"issuer":   s.config.Issuer.Backend,
	}).Info("Starting PixShare server")

	errCh := make(chan error, 1)
	go func() {
		if s.config.EnableTLS {
			errCh <- s.httpServer.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
			return
		}
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	logrus.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shutdown HTTP server")
	}

	if err := s.store.Close(); err != nil {
		logrus.WithError(err).Error("Failed to close share store")
	}

	return nil
}
