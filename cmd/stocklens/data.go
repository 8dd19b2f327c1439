package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"StockLens/internal/calculator"
	"StockLens/internal/compare"
	"StockLens/internal/export"
	"StockLens/internal/model"
	"StockLens/internal/stock"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
)

var dataCommands = []subcommands.Command{
	&showCmd{},
	&transformCmd{name: "rebase", synopsis: "prints a column rebased to start at -base"},
	&transformCmd{name: "normalize", synopsis: "prints a column scaled to [0, 100]"},
	&yearsCmd{},
	&compareCmd{},
	&exportCmd{},
	&historyCmd{},
}

var stdout io.Writer = os.Stdout

func fail(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// rangeFlags are the -start and -end flags shared by the loading commands.
type rangeFlags struct {
	start, end string
}

func (r *rangeFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.start, "start", "", "first date to fetch on a cache miss, YYYY-MM-DD")
	f.StringVar(&r.end, "end", "", "end date (exclusive) to fetch on a cache miss, YYYY-MM-DD")
}

func (r *rangeFlags) Range() (stock.DateRange, error) {
	return stock.ParseRange(r.start, r.end)
}

// withTable opens the app, loads the single ticker argument and calls fn.
func withTable(ctx context.Context, f *flag.FlagSet, rf *rangeFlags, fn func(*app, *model.PriceTable) error) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fail("expected exactly one ticker, got %d", f.NArg())
	}
	rng, err := rf.Range()
	if err != nil {
		return fail("%v", err)
	}
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	table, err := a.Loader.Load(ctx, f.Arg(0), rng)
	if err != nil {
		return fail("%v", err)
	}
	if err := fn(a, table); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

func pickColumn(column string, t *model.PriceTable) string {
	if column != "" {
		return column
	}
	if c := compare.SelectPriceColumn(t); c.Kind != compare.NoneAvailable {
		return c.Column
	}
	return model.ColumnAdjClose
}

func printSeries(w io.Writer, s model.Series, csv bool) error {
	if csv {
		return export.WriteSeriesCSV(w, s)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Date\t%s\t\n", s.Name)
	for _, p := range s.Points {
		fmt.Fprintf(tw, "%s\t%.4f\t\n", p.Date.Format(model.DateFormat), p.Value)
	}
	return tw.Flush()
}

// showCmd implements the "show" command.
type showCmd struct {
	rangeFlags
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "loads a ticker and prints a summary" }
func (*showCmd) Usage() string {
	return `show [-start YYYY-MM-DD] [-end YYYY-MM-DD] <ticker>

Loads the ticker from the cache, fetching it on a miss, and prints its
date range, columns and last row. An existing cache entry is shown as is;
-start and -end only apply to the fetch.
`
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTable(ctx, f, &c.rangeFlags, func(a *app, t *model.PriceTable) error {
		if t.Len() == 0 {
			fmt.Fprintf(stdout, "%s: no rows\n", t.Ticker)
			return nil
		}
		fmt.Fprintf(stdout, "%s: %s rows, %s to %s\n", t.Ticker, humanize.Comma(int64(t.Len())),
			t.FirstDate().Format(model.DateFormat), t.LastDate().Format(model.DateFormat))
		fmt.Fprintf(stdout, "columns: %s\n", strings.Join(t.Columns(), ", "))

		if fi, err := os.Stat(a.Loader.Cache.Path(t.Ticker)); err == nil {
			fmt.Fprintf(stdout, "cache: %s (%s, saved %s)\n", a.Loader.Cache.Path(t.Ticker),
				humanize.Bytes(uint64(fi.Size())), humanize.Time(fi.ModTime()))
		}

		last := t.Bars[t.Len()-1]
		var parts []string
		for _, col := range t.Columns() {
			v := last.Value(col)
			if col == model.ColumnVolume {
				parts = append(parts, fmt.Sprintf("%s %s", col, humanize.Comma(int64(v))))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %s", col, humanize.CommafWithDigits(v, 2)))
		}
		fmt.Fprintf(stdout, "last: %s %s\n", last.Time.Format(model.DateFormat), strings.Join(parts, ", "))
		return nil
	})
}

// transformCmd implements "rebase" and "normalize".
type transformCmd struct {
	rangeFlags
	name     string
	synopsis string
	column   string
	base     float64
	csv      bool
}

func (c *transformCmd) Name() string     { return c.name }
func (c *transformCmd) Synopsis() string { return c.synopsis }
func (c *transformCmd) Usage() string {
	return fmt.Sprintf(`%s [-column name] [-start YYYY-MM-DD] [-end YYYY-MM-DD] <ticker>

%s. The column defaults to Adjusted Close, falling back to Close.
`, c.name, c.synopsis)
}

func (c *transformCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	f.StringVar(&c.column, "column", "", "column to transform")
	f.BoolVar(&c.csv, "csv", false, "print CSV instead of a table")
	if c.name == "rebase" {
		f.Float64Var(&c.base, "base", calculator.DefaultBase, "value of the first row")
	}
}

func (c *transformCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTable(ctx, f, &c.rangeFlags, func(_ *app, t *model.PriceTable) error {
		column := pickColumn(c.column, t)
		var (
			s   model.Series
			err error
		)
		if c.name == "rebase" {
			s, err = calculator.Rebase(t, column, c.base)
		} else {
			s, err = calculator.Normalize(t, column)
		}
		if err != nil {
			return err
		}
		return printSeries(stdout, s, c.csv)
	})
}

// yearsCmd implements the "years" command.
type yearsCmd struct {
	rangeFlags
	column string
	year   int
	csv    bool
}

func (*yearsCmd) Name() string     { return "years" }
func (*yearsCmd) Synopsis() string { return "splits a rebased column by calendar year" }
func (*yearsCmd) Usage() string {
	return `years [-column name] [-year YYYY] <ticker>

Rebases the column once over the whole table and slices the result by
calendar year. Without -year a one-line summary per year is printed.
`
}

func (c *yearsCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	f.StringVar(&c.column, "column", "", "column to split")
	f.IntVar(&c.year, "year", 0, "print every row of this year")
	f.BoolVar(&c.csv, "csv", false, "print -year rows as CSV")
}

func (c *yearsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return withTable(ctx, f, &c.rangeFlags, func(_ *app, t *model.PriceTable) error {
		ys, err := calculator.SplitByYear(t, pickColumn(c.column, t))
		if err != nil {
			return err
		}
		if c.year != 0 {
			s, ok := ys[c.year]
			if !ok {
				return fmt.Errorf("no rows in %d", c.year)
			}
			return printSeries(stdout, s, c.csv)
		}
		tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "Year\tRows\tFirst\tLast\tChange\t")
		for _, y := range ys.Years() {
			pts := ys[y].Points
			first, last := pts[0].Value, pts[len(pts)-1].Value
			fmt.Fprintf(tw, "%d\t%d\t%.2f\t%.2f\t%+.2f%%\t\n", y, len(pts), first, last, (last/first-1)*100)
		}
		return tw.Flush()
	})
}

// compareCmd implements the "compare" command.
type compareCmd struct {
	rangeFlags
}

func (*compareCmd) Name() string     { return "compare" }
func (*compareCmd) Synopsis() string { return "overlays tickers rebased to 100 on their common dates" }
func (*compareCmd) Usage() string {
	return `compare [-start YYYY-MM-DD] [-end YYYY-MM-DD] <ticker> <ticker>...

Loads each ticker's adjusted close (or the best available column), keeps
only the dates all tickers share and rebases every column to 100.
`
}

func (c *compareCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return fail("compare needs at least two tickers")
	}
	rng, err := c.Range()
	if err != nil {
		return fail("%v", err)
	}
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	frame, err := compare.Overlay(ctx, a.Loader, f.Args(), rng)
	if err != nil {
		return fail("%v", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Date\t%s\t\n", strings.Join(frame.Columns, "\t"))
	for i, d := range frame.Dates {
		row := frame.Row(i)
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strconv.FormatFloat(v, 'f', 2, 64)
		}
		fmt.Fprintf(tw, "%s\t%s\t\n", d.Format(model.DateFormat), strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

// exportCmd implements the "export" command.
type exportCmd struct {
	rangeFlags
	format string
	out    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "writes bars or an overlay as CSV or XLSX" }
func (*exportCmd) Usage() string {
	return `export [-format csv|xlsx] [-o file] <ticker>...

With one ticker the full price table is written. With several the
rebased overlay on common dates is written, as "compare" prints it.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.rangeFlags.SetFlags(f)
	f.StringVar(&c.format, "format", "csv", "csv or xlsx")
	f.StringVar(&c.out, "o", "", "output file, stdout when empty")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return fail("export needs at least one ticker")
	}
	if c.format != "csv" && c.format != "xlsx" {
		return fail("unknown format %q", c.format)
	}
	rng, err := c.Range()
	if err != nil {
		return fail("%v", err)
	}
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	var frame model.Frame
	var table *model.PriceTable
	if f.NArg() == 1 {
		if table, err = a.Loader.Load(ctx, f.Arg(0), rng); err != nil {
			return fail("%v", err)
		}
		frame = export.TableFrame(table)
	} else if frame, err = compare.Overlay(ctx, a.Loader, f.Args(), rng); err != nil {
		return fail("%v", err)
	}

	w := stdout
	if c.out != "" {
		file, err := os.Create(c.out)
		if err != nil {
			return fail("%v", err)
		}
		defer file.Close()
		w = file
	}

	switch {
	case c.format == "xlsx":
		err = export.WriteFrameXLSX(w, frame, "")
	case table != nil:
		err = export.WriteTableCSV(w, table)
	default:
		err = export.WriteFrameCSV(w, frame)
	}
	if err != nil {
		return fail("%v", err)
	}
	if c.out != "" {
		fmt.Fprintf(os.Stderr, "wrote %d rows to %s\n", frame.Len(), c.out)
	}
	return subcommands.ExitSuccess
}

// historyCmd implements the "history" command.
type historyCmd struct {
	limit int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "lists recent loads from the audit log" }
func (*historyCmd) Usage() string {
	return `history [-n count]

Lists the most recent loads recorded in the SQLite database, newest first.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 20, "number of events")
}

func (c *historyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(*configPath)
	if err != nil {
		return fail("%v", err)
	}
	defer a.Close()

	events, err := a.Recorder.RecentLoads(c.limit)
	if err != nil {
		return fail("%v", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "When\tTicker\tSource\tRange\tRows\tError")
	for _, e := range events {
		rng := ""
		if !e.Start.IsZero() {
			rng = e.Start.Format(model.DateFormat) + ".." + e.End.Format(model.DateFormat)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", humanize.Time(e.At), e.Ticker, e.Source, rng,
			humanize.Comma(int64(e.Rows)), e.Err)
	}
	if err := tw.Flush(); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}
