package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var stdout io.Writer = os.Stdout

// levelWriter writes one level's entries into <director>/<date>/<level>.log
// and rotates them with lumberjack.
type levelWriter struct {
	config Config
	level  string
	now    func() time.Time

	mu      sync.Mutex
	date    string
	current *lumberjack.Logger
}

func newLevelWriter(config Config, level string) *levelWriter {
	return &levelWriter{
		config: config,
		level:  level,
		now:    time.Now,
	}
}

// Write implements io.Writer.
func (w *levelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writerFor(w.now().Format("2006-01-02")).Write(p)
}

// Sync implements zapcore.WriteSyncer. lumberjack writes straight to the
// file, so there is nothing buffered to flush.
func (w *levelWriter) Sync() error {
	return nil
}

// writerFor returns the writer for date, closing the previous day's file.
// Caller holds w.mu.
func (w *levelWriter) writerFor(date string) *lumberjack.Logger {
	if w.current != nil && w.date == date {
		return w.current
	}
	if w.current != nil {
		_ = w.current.Close()
	}

	dirPath := filepath.Join(w.config.Director, date)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		dirPath = w.config.Director
		_ = os.MkdirAll(dirPath, 0o755)
	}

	w.date = date
	w.current = &lumberjack.Logger{
		Filename:   filepath.Join(dirPath, w.level+".log"),
		MaxSize:    w.config.MaxSize,
		MaxBackups: w.config.MaxBackups,
		MaxAge:     w.config.MaxAge,
		Compress:   w.config.Compress,
		LocalTime:  true,
	}
	return w.current
}

// Close closes the current file.
func (w *levelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	w.date = ""
	return err
}

var _ io.WriteCloser = (*levelWriter)(nil)
