package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postboard/social-front/internal/config"
	"github.com/postboard/social-front/internal/crypto"
	"github.com/postboard/social-front/internal/log"
	"github.com/postboard/social-front/internal/oauth"
	"github.com/postboard/social-front/internal/providers"
	"github.com/postboard/social-front/internal/refine"
	"github.com/postboard/social-front/internal/storage"
)

// newStorage builds the configured storage backend
func newStorage(ctx context.Context, cfg *config.Config, encryptor crypto.Encryptor) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "", "memory":
		log.LogWarn("Using in-memory storage, grants will be lost on restart")
		return storage.NewMemoryStorage(), nil
	case "firestore":
		return storage.NewFirestoreStorage(ctx, cfg.Storage.GCPProject, cfg.Storage.FirestoreDatabase, cfg.Storage.FirestoreCollection, encryptor)
	case "redis":
		password := ""
		if cfg.Storage.RedisPassword.IsSet() {
			password = cfg.Storage.RedisPassword.String()
		}
		return storage.NewRedisStorage(ctx, cfg.Storage.RedisAddr, password, cfg.Storage.RedisDB, encryptor)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// newProviders builds a Provider per configured platform, with redirect URIs
// derived from the service base URL
func newProviders(cfg *config.Config) (map[string]providers.Provider, error) {
	provs := make(map[string]providers.Provider, len(cfg.Platforms))
	for name, platformCfg := range cfg.Platforms {
		redirectURI := fmt.Sprintf("%s/api/integrations/%s/callback", cfg.Server.BaseURL, name)
		p, err := providers.New(name, platformCfg, redirectURI)
		if err != nil {
			return nil, fmt.Errorf("configuring platform %s: %w", name, err)
		}
		provs[name] = p
	}
	return provs, nil
}

// Start runs the HTTP server until a shutdown signal or fatal error
func Start(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	encryptionKey := []byte(cfg.Auth.EncryptionKey.String())
	encryptor, err := crypto.NewEncryptor(encryptionKey)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}

	store, err := newStorage(ctx, cfg, encryptor)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.LogWarn("Storage close error: %v", err)
		}
	}()

	provs, err := newProviders(cfg)
	if err != nil {
		return err
	}

	oauthService := oauth.NewService(store, provs, encryptionKey)
	refiner := refine.New(cfg.Refine)
	h := &handlers{oauth: oauthService, refiner: refiner}

	httpMux := newMux(h, []byte(cfg.Auth.JWTSecret.String()), cfg.Server.AllowedOrigins)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: httpMux,
	}
	errChan := make(chan error, 1)
	go func() {
		log.Logf("HTTP server listening on %s", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Logf("HTTP server error: %v", err)
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Logf("Shutdown signal received: %v", sig)
	case err := <-errChan:
		log.Logf("Shutting down due to error: %v", err)
	case <-ctx.Done():
		log.Logf("Context cancelled, shutting down")
	}

	log.Logf("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Logf("Server shutdown error: %v", err)
		return err
	}

	log.Logf("Server shutdown complete")
	return nil
}

// newMux registers the full route table with its middleware chains
func newMux(h *handlers, jwtSecret []byte, allowedOrigins []string) *http.ServeMux {
	apiMiddlewares := func(route string) []MiddlewareFunc {
		return []MiddlewareFunc{
			corsMiddleware(allowedOrigins),
			recoverMiddleware("api"),
			correlationMiddleware(),
			loggerMiddleware("api"),
			metricsMiddleware(route),
			newJWTAuthMiddleware(jwtSecret),
		}
	}
	// Callback routes are hit by provider redirects and popup navigation, not
	// by the SPA's fetch layer, so they skip bearer auth and CORS.
	callbackMiddlewares := func(route string) []MiddlewareFunc {
		return []MiddlewareFunc{
			recoverMiddleware("oauth"),
			correlationMiddleware(),
			loggerMiddleware("oauth"),
			metricsMiddleware(route),
		}
	}

	httpMux := http.NewServeMux()
	handle := func(pattern string, handlerFunc http.HandlerFunc, mws []MiddlewareFunc) {
		httpMux.Handle(pattern, chainMiddleware(handlerFunc, mws...))
	}

	handle("POST /api/integrations/{platform}/auth", h.handleAuth, apiMiddlewares("/api/integrations/{platform}/auth"))
	handle("GET /api/integrations/{platform}/status", h.handleStatus, apiMiddlewares("/api/integrations/{platform}/status"))
	handle("DELETE /api/integrations/{platform}/disconnect", h.handleDisconnect, apiMiddlewares("/api/integrations/{platform}/disconnect"))
	handle("POST /api/integrations/{platform}/post", h.handlePost, apiMiddlewares("/api/integrations/{platform}/post"))
	handle("POST /api/integrations/content/refine", h.handleRefine, apiMiddlewares("/api/integrations/content/refine"))
	handle("POST /api/integrations/preview", h.handlePreview, apiMiddlewares("/api/integrations/preview"))

	handle("GET /api/integrations/{platform}/callback", h.handleProviderCallback, callbackMiddlewares("/api/integrations/{platform}/callback"))
	handle("GET /integrations/callback", h.handleCallbackPage, callbackMiddlewares("/integrations/callback"))

	httpMux.Handle("/health", chainMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"social-front"}`))
	}), loggerMiddleware("health")))
	httpMux.Handle("GET /metrics", metricsHandler())

	return httpMux
}
