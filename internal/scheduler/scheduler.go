package scheduler

import (
	"context"
	"fmt"
	"html"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"github.com/robfig/cron/v3"
)

// WarmReport summarizes one warm run.
type WarmReport struct {
	Started  time.Time
	Duration time.Duration
	Loaded   []string
	Failed   map[string]error
}

func (r WarmReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "warmed %d/%d tickers in %s", len(r.Loaded), len(r.Loaded)+len(r.Failed), r.Duration.Round(time.Millisecond))
	for _, t := range r.failedTickers() {
		fmt.Fprintf(&b, "\n  %s: %v", t, r.Failed[t])
	}
	return b.String()
}

// Message formats the report as a Telegram HTML message.
func (r WarmReport) Message() string {
	var b strings.Builder
	icon := "✅"
	if len(r.Failed) > 0 {
		icon = "❌"
	}
	fmt.Fprintf(&b, "%s <b>StockLens cache warm</b> | %s\n\n", icon, r.Started.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "loaded: %d, failed: %d, took %s\n", len(r.Loaded), len(r.Failed), r.Duration.Round(time.Second))
	for _, t := range r.failedTickers() {
		fmt.Fprintf(&b, "• %s: %s\n", html.EscapeString(t), html.EscapeString(r.Failed[t].Error()))
	}
	return b.String()
}

func (r WarmReport) failedTickers() []string {
	ts := make([]string, 0, len(r.Failed))
	for t := range r.Failed {
		ts = append(ts, t)
	}
	sort.Strings(ts)
	return ts
}

// TableLoader is satisfied by *stock.Loader.
type TableLoader interface {
	Load(ctx context.Context, ticker string, rng stock.DateRange) (*model.PriceTable, error)
}

// Warmer fills the cache for a watchlist. Under the never-expire policy a
// ticker that is already cached is served from disk and not refreshed.
type Warmer struct {
	Loader    TableLoader
	Watchlist []string
	Range     stock.DateRange
	Metrics   *metrics.Metrics
}

// WarmAll loads every watchlist ticker in order. A failing ticker is logged
// and counted and the run continues. Only context cancellation stops it early.
func (w *Warmer) WarmAll(ctx context.Context) (WarmReport, error) {
	report := WarmReport{Started: time.Now(), Failed: make(map[string]error)}
	log.Printf("[INFO] warming %d tickers", len(w.Watchlist))

	for _, t := range w.Watchlist {
		if err := ctx.Err(); err != nil {
			report.Duration = time.Since(report.Started)
			return report, err
		}
		table, err := w.Loader.Load(ctx, t, w.Range)
		if err != nil {
			log.Printf("[ERROR] warm %s: %v", t, err)
			report.Failed[t] = err
			w.Metrics.ObserveWarm("error")
			continue
		}
		log.Printf("[INFO] warm %s: %d rows", t, table.Len())
		report.Loaded = append(report.Loaded, t)
		w.Metrics.ObserveWarm("ok")
	}

	report.Duration = time.Since(report.Started)
	log.Printf("[INFO] %s", report)
	return report, nil
}

// Notifier delivers warm reports, e.g. *notifier.TelegramNotifier.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs the Warmer on a cron schedule.
type Scheduler struct {
	Cron   *cron.Cron
	Warmer *Warmer
	Ctx    context.Context

	// Notifier, when set, receives the report of every run with failures,
	// or of every run when NotifyAlways is set.
	Notifier     Notifier
	NotifyAlways bool

	mu   sync.Mutex
	last WarmReport
}

// NewScheduler creates a scheduler using six-field cron specs. Overlapping
// runs are skipped.
func NewScheduler(ctx context.Context, w *Warmer) *Scheduler {
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		Cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(logger))),
		Warmer: w,
		Ctx:    ctx,
	}
}

// Register adds the warm task at spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.warmTask); err != nil {
		return fmt.Errorf("register warm task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the scheduler and waits for a running warm to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes the warm task immediately.
func (s *Scheduler) RunNow() {
	s.warmTask()
}

// LastReport returns the report of the most recent run.
func (s *Scheduler) LastReport() WarmReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) warmTask() {
	log.Println("[INFO] running warm task")
	report, err := s.Warmer.WarmAll(s.Ctx)
	if err != nil {
		log.Printf("[WARN] warm task interrupted: %v", err)
	}
	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if s.Notifier != nil && (len(report.Failed) > 0 || s.NotifyAlways) {
		if err := s.Notifier.SendWithRetry(s.Ctx, report.Message(), 3); err != nil {
			log.Printf("[ERROR] send warm report: %v", err)
		}
	}
}
