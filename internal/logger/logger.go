// Package logger sets up the process-wide log output with file rotation
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation strategies
const (
	RotateDaily = "daily"
	RotateSize  = "size"
)

// Config holds log output configuration
type Config struct {
	LogDir     string
	LogFile    string // filename suffix, app.log → 20260105-app.log
	Rotation   string // daily (default) or size
	MaxSize    int    // max size of one file in MB (size rotation)
	MaxBackups int    // rotated files to keep (size rotation)
	MaxAge     int    // days to keep rotated files
	Compress   bool   // compress rotated files (size rotation)
	Console    bool   // tee output to stdout
}

// DefaultConfig returns the default log configuration
func DefaultConfig() *Config {
	return &Config{
		LogDir:     "logs",
		LogFile:    "app.log",
		Rotation:   RotateDaily,
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
		Console:    true,
	}
}

// DailyWriter rotates the log file by calendar date
type DailyWriter struct {
	mu          sync.Mutex
	logDir      string
	logSuffix   string
	maxAge      int
	currentDate string // YYYYMMDD
	file        *os.File
}

// NewDailyWriter creates a date-rotating log writer
func NewDailyWriter(logDir, logSuffix string, maxAge int) *DailyWriter {
	return &DailyWriter{
		logDir:    logDir,
		logSuffix: logSuffix,
		maxAge:    maxAge,
	}
}

func getDateString() string {
	return time.Now().Format("20060102")
}

func (w *DailyWriter) getFilename(date string) string {
	return filepath.Join(w.logDir, fmt.Sprintf("%s-%s", date, w.logSuffix))
}

// Write implements io.Writer, rotating when the date changes
func (w *DailyWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	currentDate := getDateString()
	if w.file == nil || w.currentDate != currentDate {
		if err := w.rotate(currentDate); err != nil {
			return 0, err
		}
	}

	return w.file.Write(p)
}

func (w *DailyWriter) rotate(newDate string) error {
	if w.file != nil {
		w.file.Close()
	}

	filename := w.getFilename(newDate)
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w.file = file
	w.currentDate = newDate
	return nil
}

// Close closes the current log file
func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Cleanup removes log files older than maxAge days
func (w *DailyWriter) Cleanup() error {
	if w.maxAge <= 0 {
		return nil
	}

	cutoffDate := time.Now().AddDate(0, 0, -w.maxAge).Format("20060102")

	entries, err := os.ReadDir(w.logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	var deleted int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, "-"+w.logSuffix) {
			continue
		}

		dateStr := strings.TrimSuffix(name, "-"+w.logSuffix)
		if len(dateStr) != 8 {
			continue
		}

		if dateStr < cutoffDate {
			path := filepath.Join(w.logDir, name)
			if err := os.Remove(path); err != nil {
				log.Printf("⚠️ Failed to remove expired log file %s: %v", path, err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		log.Printf("🗑️ Cleaned up %d expired log file(s)", deleted)
	}

	return nil
}

// ListLogFiles lists all rotated log files in date order
func (w *DailyWriter) ListLogFiles() ([]string, error) {
	entries, err := os.ReadDir(w.logDir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, "-"+w.logSuffix) {
			files = append(files, filepath.Join(w.logDir, name))
		}
	}

	sort.Strings(files)
	return files, nil
}

// Setup initializes the process-wide log output
func Setup(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(cfg.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var fileWriter io.Writer
	switch cfg.Rotation {
	case RotateSize:
		fileWriter = &lumberjack.Logger{
			Filename:   filepath.Join(cfg.LogDir, cfg.LogFile),
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
	default:
		dailyWriter := NewDailyWriter(cfg.LogDir, cfg.LogFile, cfg.MaxAge)
		fileWriter = dailyWriter

		// Hourly cleanup of expired files
		go func() {
			if err := dailyWriter.Cleanup(); err != nil {
				log.Printf("⚠️ Log cleanup failed: %v", err)
			}

			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()

			for range ticker.C {
				if err := dailyWriter.Cleanup(); err != nil {
					log.Printf("⚠️ Log cleanup failed: %v", err)
				}
			}
		}()
	}

	var writer io.Writer
	if cfg.Console {
		writer = io.MultiWriter(os.Stdout, fileWriter)
	} else {
		writer = fileWriter
	}

	log.SetOutput(writer)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	log.Printf("📝 Logging initialized (dir=%s, rotation=%s, keep %d days)", cfg.LogDir, cfg.Rotation, cfg.MaxAge)

	return nil
}
