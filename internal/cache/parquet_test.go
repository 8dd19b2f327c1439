package cache

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"StockLens/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func TestParquetStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ohlcv")
	store := NewParquetStore(dir)
	nan := math.NaN()

	in := model.NewPriceTable("AAPL", []model.OHLCV{
		{Time: day(2021, 1, 4), Open: 133.52, High: 133.61, Low: 126.76, Close: 129.41, AdjClose: 126.83, Volume: 143301900},
		{Time: day(2021, 1, 5), Open: 128.89, High: 131.74, Low: 128.43, Close: 131.01, AdjClose: nan, Volume: 97664900},
		{Time: day(2021, 1, 6), Open: nan, High: nan, Low: nan, Close: 126.6, AdjClose: 124.07, Volume: nan},
	})
	require.NoError(t, store.Put("AAPL", in))

	_, err := os.Stat(filepath.Join(dir, "AAPL.parquet"))
	require.NoError(t, err, "cache dir and file are created")

	entry, ok, err := store.Get("AAPL")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, entry.SavedAt.IsZero())

	out := entry.Table
	require.Equal(t, in.Len(), out.Len())
	assert.Equal(t, in.Columns(), out.Columns())
	for i := range in.Bars {
		assert.Equal(t, in.Bars[i].Time, out.Bars[i].Time)
		for _, c := range model.AllColumns {
			want, got := in.Bars[i].Value(c), out.Bars[i].Value(c)
			if math.IsNaN(want) {
				assert.True(t, math.IsNaN(got), "row %d %s", i, c)
				continue
			}
			assert.Equal(t, want, got, "row %d %s", i, c)
		}
	}
}

func TestParquetStore_Miss(t *testing.T) {
	store := NewParquetStore(t.TempDir())
	_, ok, err := store.Get("MSFT")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParquetStore_EmptyTable(t *testing.T) {
	store := NewParquetStore(t.TempDir())
	require.NoError(t, store.Put("EMPTY", model.NewPriceTable("EMPTY", nil)))

	entry, ok, err := store.Get("EMPTY")
	require.NoError(t, err)
	require.True(t, ok, "an empty result is still a cache entry")
	assert.Equal(t, 0, entry.Table.Len())
}

func TestParquetStore_Overwrite(t *testing.T) {
	dir := t.TempDir()
	store := NewParquetStore(dir)
	first := model.NewPriceTable("X", []model.OHLCV{{Time: day(2021, 1, 4), Close: 1, Open: 1, High: 1, Low: 1, AdjClose: 1, Volume: 1}})
	second := model.NewPriceTable("X", []model.OHLCV{{Time: day(2022, 1, 3), Close: 2, Open: 2, High: 2, Low: 2, AdjClose: 2, Volume: 2}})
	require.NoError(t, store.Put("X", first))
	require.NoError(t, store.Put("X", second))

	entry, ok, err := store.Get("X")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, entry.Table.Len())
	assert.Equal(t, 2.0, entry.Table.Bars[0].Close)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1, "no temp files left behind")
}

func TestParquetStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.parquet"), []byte("not parquet"), 0o644))
	_, _, err := NewParquetStore(dir).Get("BAD")
	assert.Error(t, err)
}
