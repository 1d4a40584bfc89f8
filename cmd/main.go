package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokrelay/internal/backend"
	"tokrelay/internal/config"
	"tokrelay/internal/handlers"
	"tokrelay/internal/history"
	"tokrelay/internal/logger"
	"tokrelay/internal/ratelimit"
	"tokrelay/internal/router"
	"tokrelay/internal/service"
	"tokrelay/internal/store"
	"tokrelay/internal/validate"
)

func main() {
	cfg := config.MustLoad()

	log := logger.NewLogger()

	st, err := store.NewArtifactStore(cfg.Relay.DownloadDir, log)
	if err != nil {
		log.Error("failed to init artifact store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var hist *history.Store
	if cfg.Relay.HistoryDB != "" {
		hist, err = history.Open(cfg.Relay.HistoryDB)
		if err != nil {
			log.Error("failed to open history db", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer hist.Close()
	}

	backends := buildBackends(cfg, st, log)
	if len(backends) == 0 {
		log.Error("no known backends in backend_order", slog.Any("order", cfg.Backends.Order))
		os.Exit(1)
	}

	validator := validate.NewValidator(nil)
	limiter := ratelimit.NewLimiter(cfg.Relay.RateLimitMax, cfg.Relay.RateLimitWindow)

	s := service.NewService(cfg, log, validator, limiter, st, backends, hist)

	h := handlers.NewHandler(s, log, cfg.Relay.RateLimitPerClient)

	r := router.NewRouter(h)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Backends.Timeout + cfg.Server.Timeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("start server",
		slog.String("host", cfg.Server.Host),
		slog.String("port", cfg.Server.Port),
		slog.String("downloads", st.Dir()),
		slog.Any("backends", cfg.Backends.Order))

	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", slog.String("error", err.Error()))

			os.Exit(1)
		}
	}()

	sig := <-sigint
	log.Info("received signal", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Info("failed to stop server", slog.String("error", err.Error()))
	}
}

// buildBackends instantiates the chain in the configured priority order.
// Unknown names are skipped with a warning so a typo degrades instead of
// crashing the boot.
func buildBackends(cfg *config.Config, st *store.ArtifactStore, log *slog.Logger) []backend.Extractor {
	ytdlp := backend.NewYtDlp(cfg.Backends.YtDlpPath, cfg.Backends.Retries, st, log)
	client := &http.Client{Timeout: cfg.Backends.Timeout}

	var chain []backend.Extractor
	for _, name := range cfg.Backends.Order {
		switch name {
		case "ytdlp":
			chain = append(chain, ytdlp)
		case "ytdlp-cookies":
			chain = append(chain, backend.NewCookieYtDlp(ytdlp, cfg.Backends.CookiesFile))
		case "tikwm":
			chain = append(chain, backend.NewTikwm(cfg.Backends.TikwmBase, client))
		case "ssstik":
			chain = append(chain, backend.NewSsstik(cfg.Backends.SsstikBase, client))
		default:
			log.Warn("unknown backend in backend_order", slog.String("name", name))
		}
	}
	return chain
}
