package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-analytics/internal/model"
)

func candle(ts int64, close float64) model.Candle {
	return model.Candle{
		Timestamp: ts,
		Open:      close - 1, High: close + 2, Low: close - 3, Close: close,
		Volume: 42,
		Period: model.Period1m,
	}
}

func openStore(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candles.db")
	w, err := New(WriterConfig{DBPath: path, BatchSize: 3, FlushDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	r, err := NewReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return w, r
}

func archive(t *testing.T, w *Writer, symbol string, candles ...model.Candle) {
	t.Helper()
	ch := make(chan model.Candle, len(candles))
	for _, c := range candles {
		ch <- c
	}
	close(ch)
	w.Run(context.Background(), symbol, ch)
}

func TestArchiveAndReadRecent(t *testing.T) {
	w, r := openStore(t)
	ctx := context.Background()

	var commits int
	w.OnCommit = func(n int, _ time.Duration) { commits += n }

	var in []model.Candle
	for i := 0; i < 7; i++ {
		in = append(in, candle(int64(i)*60_000, 24000+float64(i)))
	}
	archive(t, w, "AG", in...)
	archive(t, w, "RB", candle(0, 3500))
	assert.Equal(t, 8, commits)

	got, err := r.ReadRecent(ctx, "AG", 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, int64(2*60_000), got[0].Timestamp, "oldest of the newest five")
	assert.Equal(t, int64(6*60_000), got[4].Timestamp)
	assert.Equal(t, in[6], got[4])

	last, err := w.LastTimestamp(ctx, "AG")
	require.NoError(t, err)
	assert.Equal(t, int64(6*60_000), last)

	last, err = w.LastTimestamp(ctx, "CU")
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestArchive_UpsertAndSkipsCoarsePeriods(t *testing.T) {
	w, r := openStore(t)

	coarse := candle(0, 1)
	coarse.Period = model.Period5m
	archive(t, w, "AG", candle(0, 100), coarse, candle(0, 101))

	got, err := r.ReadRecent(context.Background(), "AG", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 101.0, got[0].Close)
}

func TestReadRange(t *testing.T) {
	w, r := openStore(t)
	var in []model.Candle
	for i := 0; i < 5; i++ {
		in = append(in, candle(int64(i)*60_000, 24000+float64(i)))
	}
	archive(t, w, "AG", in...)

	got, err := r.ReadRange(context.Background(), "AG", 60_000, 4*60_000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, in[1:4], got)

	got, err = r.ReadRange(context.Background(), "AG", 3*60_000, 0)
	require.NoError(t, err)
	assert.Equal(t, in[3:], got, "no upper bound")
}

func TestReadRecent_Empty(t *testing.T) {
	_, r := openStore(t)
	got, err := r.ReadRecent(context.Background(), "AG", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.ReadRecent(context.Background(), "AG", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriter_RunFlushesOnCancel(t *testing.T) {
	w, r := openStore(t)
	w.cfg.FlushDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan model.Candle, 1)
	done := make(chan struct{})
	go func() {
		w.Run(ctx, "AG", ch)
		close(done)
	}()

	ch <- candle(60_000, 24000)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	got, err := r.ReadRecent(context.Background(), "AG", 10)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
