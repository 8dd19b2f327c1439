package cache

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"StockLens/internal/model"

	"github.com/parquet-go/parquet-go"
)

// FileExt is the extension of cache files.
const FileExt = ".parquet"

// barRow is the on-disk schema. Missing values are stored as nulls.
type barRow struct {
	Date     int64    `parquet:"date,timestamp(millisecond)"`
	Open     *float64 `parquet:"open,optional"`
	High     *float64 `parquet:"high,optional"`
	Low      *float64 `parquet:"low,optional"`
	Close    *float64 `parquet:"close,optional"`
	AdjClose *float64 `parquet:"adj_close,optional"`
	Volume   *float64 `parquet:"volume,optional"`
}

// ParquetStore keeps one parquet file per ticker under Dir.
type ParquetStore struct {
	Dir string
}

// NewParquetStore returns a store rooted at dir. The directory is created on
// first write.
func NewParquetStore(dir string) *ParquetStore {
	return &ParquetStore{Dir: dir}
}

func (s *ParquetStore) Path(ticker string) string {
	return filepath.Join(s.Dir, ticker+FileExt)
}

func (s *ParquetStore) Get(ticker string) (Entry, bool, error) {
	path := s.Path(ticker)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("stat cache %s: %w", path, err)
	}
	rows, err := parquet.ReadFile[barRow](path)
	if err != nil {
		return Entry{}, false, fmt.Errorf("read cache %s: %w", path, err)
	}
	bars := make([]model.OHLCV, len(rows))
	for i, r := range rows {
		bars[i] = r.toBar()
	}
	return Entry{Table: model.NewPriceTable(ticker, bars), SavedAt: info.ModTime()}, true, nil
}

// Put writes to a temporary file in Dir and renames it over the entry, so a
// reader never sees a partial file. Concurrent writers race; the last rename wins.
func (s *ParquetStore) Put(ticker string, table *model.PriceTable) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir %s: %w", s.Dir, err)
	}
	rows := make([]barRow, 0, table.Len())
	if table != nil {
		for _, b := range table.Bars {
			rows = append(rows, fromBar(b))
		}
	}

	tmp, err := os.CreateTemp(s.Dir, ticker+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	if err := parquet.Write(tmp, rows); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write cache %s: %w", ticker, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(ticker)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache file: %w", err)
	}
	log.Printf("[INFO] cached %d rows for %s at %s", len(rows), ticker, s.Path(ticker))
	return nil
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func val(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func fromBar(b model.OHLCV) barRow {
	return barRow{
		Date:     b.Time.UnixMilli(),
		Open:     ptr(b.Open),
		High:     ptr(b.High),
		Low:      ptr(b.Low),
		Close:    ptr(b.Close),
		AdjClose: ptr(b.AdjClose),
		Volume:   ptr(b.Volume),
	}
}

func (r barRow) toBar() model.OHLCV {
	return model.OHLCV{
		Time:     time.UnixMilli(r.Date).UTC(),
		Open:     val(r.Open),
		High:     val(r.High),
		Low:      val(r.Low),
		Close:    val(r.Close),
		AdjClose: val(r.AdjClose),
		Volume:   val(r.Volume),
	}
}
