package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"StockLens/internal/api"
	"StockLens/internal/notifier"
	"StockLens/internal/scheduler"
	"StockLens/internal/stock"

	"github.com/google/subcommands"
)

var serviceCommands = []subcommands.Command{
	&warmCmd{},
	&serveCmd{},
}

func newScheduler(ctx context.Context, a *app) *scheduler.Scheduler {
	w := &scheduler.Warmer{
		Loader:    a.Loader,
		Watchlist: a.Config.Watchlist,
		Range:     stock.DateRange{},
		Metrics:   a.Metrics,
	}
	s := scheduler.NewScheduler(ctx, w)
	if n := a.Config.Notify; n.TelegramBotToken != "" {
		s.Notifier = notifier.NewTelegramNotifier(n.TelegramBotToken, n.TelegramChatID, a.Config.Proxy)
		s.NotifyAlways = n.Always
	}
	return s
}

// warmCmd implements the "warm" command.
type warmCmd struct {
	cron bool
}

func (*warmCmd) Name() string     { return "warm" }
func (*warmCmd) Synopsis() string { return "fills the cache for every watchlist ticker" }
func (*warmCmd) Usage() string {
	return `warm [-cron]

Loads every ticker of the watchlist once. Tickers that are already cached
are left as they are. With -cron the run repeats on schedule.warm_cron
until interrupted.
`
}

func (c *warmCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.cron, "cron", false, "keep running and warm on schedule.warm_cron")
}

func (c *warmCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	sched := newScheduler(ctx, a)
	if !c.cron {
		sched.RunNow()
		if err := ctx.Err(); err != nil {
			return fail("%v", err)
		}
		if len(sched.LastReport().Failed) > 0 {
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	if err := sched.Register(a.Config.Schedule.WarmCron); err != nil {
		return fail("%v", err)
	}
	sched.Start()
	log.Printf("[INFO] warming %d tickers on %q. Press Ctrl+C to stop.", len(a.Config.Watchlist), a.Config.Schedule.WarmCron)
	<-ctx.Done()
	log.Println("[INFO] shutdown signal received, stopping...")
	sched.Stop()
	return subcommands.ExitSuccess
}

// serveCmd implements the "serve" command.
type serveCmd struct {
	addr string
	warm bool
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serves the JSON API for the dashboard" }
func (*serveCmd) Usage() string {
	return `serve [-addr host:port] [-warm]

Serves /api/stocks/{ticker}/..., /api/compare and /metrics. With -warm the
watchlist is also warmed on schedule.warm_cron.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address, defaults to server.addr")
	f.BoolVar(&c.warm, "warm", false, "run the warm schedule alongside the server")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	addr := c.addr
	if addr == "" {
		addr = a.Config.Server.Addr
	}

	if c.warm {
		sched := newScheduler(ctx, a)
		if err := sched.Register(a.Config.Schedule.WarmCron); err != nil {
			return fail("%v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewHandler(a.Loader, a.Metrics).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fail("%v", err)
		}
	case <-ctx.Done():
		log.Println("[INFO] shutdown signal received, stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] shutdown: %v", err)
		}
	}
	log.Println("[INFO] StockLens stopped")
	return subcommands.ExitSuccess
}
