// Package api serves price tables and their transforms as read-only JSON
// for the browser dashboard.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"StockLens/internal/calculator"
	"StockLens/internal/compare"
	"StockLens/internal/metrics"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type ctxKey string

const tickerKey ctxKey = "ticker"

// Handler exposes the loader through HTTP.
type Handler struct {
	Loader  compare.TableLoader
	Metrics *metrics.Metrics
}

// NewHandler creates a Handler. m may be nil.
func NewHandler(loader compare.TableLoader, m *metrics.Metrics) *Handler {
	return &Handler{Loader: loader, Metrics: m}
}

// Routes returns the full router including /metrics.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/stocks/{ticker}", func(r chi.Router) {
			r.Use(h.TickerCtx)
			r.Get("/bars", h.GetBars)
			r.Get("/rebase", h.GetRebase)
			r.Get("/normalize", h.GetNormalize)
			r.Get("/years", h.GetYears)
			r.Get("/years/{year}", h.GetYear)
		})
		r.Get("/compare", h.GetCompare)
	})
	return r
}

// TickerCtx validates the ticker path parameter and stores its normalized form.
func (h *Handler) TickerCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := stock.NormalizeTicker(chi.URLParam(r, "ticker"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), tickerKey, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tickerFrom(r *http.Request) string {
	t, _ := r.Context().Value(tickerKey).(string)
	return t
}

type errorResponse struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidTicker), errors.Is(err, model.ErrInvalidRange), errors.Is(err, errBadParam):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDataNotLoaded):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDegenerateSeries), errors.Is(err, model.ErrInsufficientOverlap):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrFetch):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[ERROR] %s %s: %v", r.Method, r.URL.Path, err)
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Status: status, Error: err.Error()})
}

var errBadParam = errors.New("bad parameter")

func badParam(name, value string, cause error) error {
	return fmt.Errorf("%w: %s=%q: %v", errBadParam, name, value, cause)
}

// loadTable loads the ticker from the path with the range from the query.
func (h *Handler) loadTable(r *http.Request) (*model.PriceTable, error) {
	q := r.URL.Query()
	rng, err := stock.ParseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		return nil, err
	}
	return h.Loader.Load(r.Context(), tickerFrom(r), rng)
}

// columnFor returns the requested column, or the price column picked by
// compare.SelectPriceColumn when none is given.
func columnFor(r *http.Request, t *model.PriceTable) (string, error) {
	if c := r.URL.Query().Get("column"); c != "" {
		return c, nil
	}
	choice := compare.SelectPriceColumn(t)
	if choice.Kind == compare.NoneAvailable {
		return "", &model.DataNotLoadedError{Column: model.ColumnAdjClose}
	}
	return choice.Column, nil
}

// jsonNumber maps NaN to null.
func jsonNumber(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type pointResponse struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

func points(s model.Series) []pointResponse {
	out := make([]pointResponse, len(s.Points))
	for i, p := range s.Points {
		out[i] = pointResponse{Date: p.Date.Format(model.DateFormat), Value: jsonNumber(p.Value)}
	}
	return out
}

type seriesResponse struct {
	Ticker string          `json:"ticker"`
	Column string          `json:"column"`
	Points []pointResponse `json:"points"`
}

// GetBars handles GET /api/stocks/{ticker}/bars.
func (h *Handler) GetBars(w http.ResponseWriter, r *http.Request) {
	t, err := h.loadTable(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cols := t.Columns()
	rows := make([]map[string]interface{}, 0, t.Len())
	for _, b := range t.Bars {
		row := map[string]interface{}{"date": b.Time.Format(model.DateFormat)}
		for _, c := range cols {
			row[c] = jsonNumber(b.Value(c))
		}
		rows = append(rows, row)
	}
	render.JSON(w, r, map[string]interface{}{
		"ticker":  t.Ticker,
		"columns": cols,
		"count":   t.Len(),
		"rows":    rows,
	})
}

// GetRebase handles GET /api/stocks/{ticker}/rebase?column=&base=.
func (h *Handler) GetRebase(w http.ResponseWriter, r *http.Request) {
	base := calculator.DefaultBase
	if v := r.URL.Query().Get("base"); v != "" {
		b, err := strconv.ParseFloat(v, 64)
		if err == nil && (math.IsNaN(b) || math.IsInf(b, 0)) {
			err = errors.New("must be finite")
		}
		if err != nil {
			writeError(w, r, badParam("base", v, err))
			return
		}
		base = b
	}
	h.serveSeries(w, r, func(t *model.PriceTable, column string) (model.Series, error) {
		return calculator.Rebase(t, column, base)
	})
}

// GetNormalize handles GET /api/stocks/{ticker}/normalize?column=.
func (h *Handler) GetNormalize(w http.ResponseWriter, r *http.Request) {
	h.serveSeries(w, r, calculator.Normalize)
}

func (h *Handler) serveSeries(w http.ResponseWriter, r *http.Request, transform func(*model.PriceTable, string) (model.Series, error)) {
	t, err := h.loadTable(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	column, err := columnFor(r, t)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := transform(t, column)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, seriesResponse{Ticker: t.Ticker, Column: s.Name, Points: points(s)})
}

func (h *Handler) split(r *http.Request) (*model.PriceTable, string, calculator.YearSplit, error) {
	t, err := h.loadTable(r)
	if err != nil {
		return nil, "", nil, err
	}
	column, err := columnFor(r, t)
	if err != nil {
		return nil, "", nil, err
	}
	ys, err := calculator.SplitByYear(t, column)
	if err != nil {
		return nil, "", nil, err
	}
	return t, column, ys, nil
}

// GetYears handles GET /api/stocks/{ticker}/years?column=.
func (h *Handler) GetYears(w http.ResponseWriter, r *http.Request) {
	t, column, ys, err := h.split(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	years := make(map[string][]pointResponse, ys.Len())
	for _, y := range ys.Years() {
		years[strconv.Itoa(y)] = points(ys[y])
	}
	render.JSON(w, r, map[string]interface{}{
		"ticker": t.Ticker,
		"column": column,
		"years":  years,
	})
}

// GetYear handles GET /api/stocks/{ticker}/years/{year}?column=.
func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "year")
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, r, badParam("year", raw, err))
		return
	}
	t, column, ys, err := h.split(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, ok := ys[year]
	if !ok {
		writeError(w, r, &model.DataNotLoadedError{Column: fmt.Sprintf("%s in %d", column, year)})
		return
	}
	render.JSON(w, r, seriesResponse{Ticker: t.Ticker, Column: column, Points: points(s)})
}

// GetCompare handles GET /api/compare?tickers=A,B.
func (h *Handler) GetCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var tickers []string
	for _, t := range strings.Split(q.Get("tickers"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) < 2 {
		writeError(w, r, badParam("tickers", q.Get("tickers"), errors.New("need at least two")))
		return
	}
	rng, err := stock.ParseRange(q.Get("start"), q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	frame, err := compare.Overlay(r.Context(), h.Loader, tickers, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dates := make([]string, frame.Len())
	for i, d := range frame.Dates {
		dates[i] = d.Format(model.DateFormat)
	}
	series := make(map[string][]*float64, len(frame.Columns))
	for _, c := range frame.Columns {
		vals := make([]*float64, frame.Len())
		for i, v := range frame.Values[c] {
			vals[i] = jsonNumber(v)
		}
		series[c] = vals
	}
	render.JSON(w, r, map[string]interface{}{
		"tickers": frame.Columns,
		"base":    calculator.DefaultBase,
		"dates":   dates,
		"series":  series,
	})
}
