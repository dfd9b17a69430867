package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyquery/polymarket-mcp/internal/feed"
	"github.com/polyquery/polymarket-mcp/internal/mcpserver"
	"github.com/polyquery/polymarket-mcp/internal/platform/polymarket"
)

// StdioMode serves MCP over stdin/stdout. This is the mode MCP clients such
// as desktop assistants launch the binary in.
func (a *App) StdioMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	a.startPriceFeed(ctx, g, deps)

	srv := mcpserver.New(deps.Dispatcher, a.version)
	g.Go(func() error {
		err := mcpserver.ServeStdio(ctx, srv)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// HTTPMode serves MCP over the streamable HTTP transport with a health
// endpoint alongside.
func (a *App) HTTPMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	a.startPriceFeed(ctx, g, deps)

	mcpSrv := mcpserver.New(deps.Dispatcher, a.version)

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpserver.NewStreamableHTTP(mcpSrv))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, a.version)
	})

	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http transport listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("http transport shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// CheckMode probes every configured backend once and exits. Useful for
// deployment smoke tests and MCP client configuration debugging.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var failed bool

	if _, err := deps.Gamma.ListMarkets(ctx, polymarket.ListQuery{Limit: 1}); err != nil {
		failed = true
		a.logger.ErrorContext(ctx, "check: gamma api unreachable", slog.String("error", err.Error()))
	} else {
		a.logger.InfoContext(ctx, "check: gamma api ok")
	}

	a.logger.InfoContext(ctx, "check: clob auth",
		slog.Bool("authenticated", deps.Clob.Authenticated()),
	)

	if deps.Redis != nil {
		if err := deps.Redis.Ping(ctx); err != nil {
			failed = true
			a.logger.ErrorContext(ctx, "check: redis unreachable", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "check: redis ok")
		}
	}

	if deps.Postgres != nil {
		if err := deps.Postgres.Pool().Ping(ctx); err != nil {
			failed = true
			a.logger.ErrorContext(ctx, "check: postgres unreachable", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "check: postgres ok")
		}
	}

	if deps.Invocations != nil {
		if recent, err := deps.Invocations.Recent(ctx, 5); err != nil {
			failed = true
			a.logger.ErrorContext(ctx, "check: audit log unreadable", slog.String("error", err.Error()))
		} else {
			a.logger.InfoContext(ctx, "check: audit log ok",
				slog.Int("recent_invocations", len(recent)),
			)
		}
	}

	if failed {
		return errors.New("app: one or more checks failed")
	}
	return nil
}

// startPriceFeed adds the live price feed goroutine when configured.
func (a *App) startPriceFeed(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Feed.Enabled || deps.PriceCache == nil {
		return
	}

	pf := feed.NewPriceFeed(
		a.cfg.Polymarket.WsHost+"/ws/market",
		a.cfg.Feed.AssetIDs,
		deps.PriceCache,
		a.logger,
	)
	g.Go(func() error {
		err := pf.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.WarnContext(ctx, "price feed stopped", slog.String("error", err.Error()))
		}
		// The feed is an optimization; its failure never takes the server down.
		return nil
	})
}
