package logger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSafeFileWriterConcurrentWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "executions.jsonl")
	w, err := NewSafeFileWriter(path, 20*time.Millisecond, zap.NewNop())
	require.NoError(t, err)

	const goroutines, perGoroutine = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				assert.NoError(t, w.WriteLine([]byte(fmt.Sprintf(`{"worker":%d,"n":%d}`, id, j))))
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	lines, _ := w.Stats()
	assert.Equal(t, uint64(goroutines*perGoroutine), lines)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), goroutines*perGoroutine)
}

func TestSafeFileWriterFlushesPeriodically(t *testing.T) {
	w, err := NewSafeFileWriter(filepath.Join(t.TempDir(), "slow.log"), 10*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.WriteLine([]byte("one")))
	assert.Eventually(t, func() bool {
		_, flushes := w.Stats()
		return flushes >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestSafeCSVWriterHeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	header := []string{"time", "request_id", "profit_bps"}

	w, err := NewSafeCSVWriter(path, header, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]string{"t1", "a", "150"}))
	require.NoError(t, w.Close())

	// Reopening an existing file appends rows without a second header.
	w, err = NewSafeCSVWriter(path, header, time.Hour, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord([]string{"t2", "b", "20"}))
	require.NoError(t, w.Close())

	records, _ := w.Stats()
	assert.Equal(t, uint64(1), records, "header is not counted")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "b", rows[2][1])
}
