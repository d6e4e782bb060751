// internal/logger/writers.go
package logger

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// flushLoop calls flush every interval until done is closed.
type flushLoop struct {
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func startFlushLoop(interval time.Duration, flush func() error, logger *zap.Logger, path string) *flushLoop {
	fl := &flushLoop{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	fl.wg.Add(1)
	go func() {
		defer fl.wg.Done()
		for {
			select {
			case <-fl.ticker.C:
				if err := flush(); err != nil {
					logger.Error("Periodic flush failed", zap.String("file", path), zap.Error(err))
				}
			case <-fl.done:
				return
			}
		}
	}()
	return fl
}

func (fl *flushLoop) stop() {
	close(fl.done)
	fl.ticker.Stop()
	fl.wg.Wait()
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// SafeFileWriter is a buffered, append-only line writer that is safe for
// concurrent use and flushes on an interval.
type SafeFileWriter struct {
	mu     sync.Mutex
	buf    *bufio.Writer
	file   *os.File
	loop   *flushLoop
	logger *zap.Logger
	path   string

	lines   uint64
	flushes uint64
}

// NewSafeFileWriter opens path for appending.
func NewSafeFileWriter(path string, flushInterval time.Duration, logger *zap.Logger) (*SafeFileWriter, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	w := &SafeFileWriter{
		buf:    bufio.NewWriter(file),
		file:   file,
		logger: logger,
		path:   path,
	}
	w.loop = startFlushLoop(flushInterval, w.Flush, logger, path)
	return w, nil
}

// WriteLine appends line and a newline.
func (w *SafeFileWriter) WriteLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.buf.Write(line); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	w.lines++
	return nil
}

// Flush writes buffered data through to disk.
func (w *SafeFileWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	w.flushes++
	return nil
}

// Close stops the flush loop, flushes and closes the file.
func (w *SafeFileWriter) Close() error {
	w.loop.stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	w.logger.Info("File writer closed",
		zap.String("file", w.path),
		zap.Uint64("lines", w.lines),
		zap.Uint64("flushes", w.flushes))
	return nil
}

// Stats returns the number of lines written and flushes performed.
func (w *SafeFileWriter) Stats() (lines, flushes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines, w.flushes
}

// SafeCSVWriter is the CSV counterpart of SafeFileWriter.
type SafeCSVWriter struct {
	mu     sync.Mutex
	csv    *csv.Writer
	file   *os.File
	loop   *flushLoop
	logger *zap.Logger
	path   string

	records uint64
	flushes uint64
}

// NewSafeCSVWriter opens path for appending. header is written only when the
// file is empty, and is not counted as a record.
func NewSafeCSVWriter(path string, header []string, flushInterval time.Duration, logger *zap.Logger) (*SafeCSVWriter, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	w := &SafeCSVWriter{
		csv:    csv.NewWriter(file),
		file:   file,
		logger: logger,
		path:   path,
	}
	if stat.Size() == 0 && len(header) > 0 {
		if err := w.csv.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		w.csv.Flush()
	}
	w.loop = startFlushLoop(flushInterval, w.Flush, logger, path)
	return w, nil
}

// WriteRecord appends one CSV row.
func (w *SafeCSVWriter) WriteRecord(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.records++
	return nil
}

// Flush writes buffered rows through to disk.
func (w *SafeCSVWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	w.flushes++
	return nil
}

// Close stops the flush loop, flushes and closes the file.
func (w *SafeCSVWriter) Close() error {
	w.loop.stop()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	w.logger.Info("CSV writer closed",
		zap.String("file", w.path),
		zap.Uint64("records", w.records),
		zap.Uint64("flushes", w.flushes))
	return nil
}

// Stats returns the number of records written and flushes performed.
func (w *SafeCSVWriter) Stats() (records, flushes uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records, w.flushes
}
