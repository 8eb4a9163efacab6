package backend

import (
	"context"
	"time"

	"cashbook/internal/prefs"
	"cashbook/internal/store"
	"cashbook/internal/store/sheets"
)

// BackendType names a persistence backend.
type BackendType string

const (
	HTTPBackend   BackendType = "http"
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	RedisBackend  BackendType = "redis"
	SheetsBackend BackendType = "sheets"
)

func (t BackendType) IsValid() bool {
	switch t {
	case HTTPBackend, MemoryBackend, SQLiteBackend, RedisBackend, SheetsBackend:
		return true
	}
	return false
}

func (t BackendType) String() string {
	return string(t)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result is a ready transaction backend with the preference store that
// lives next to it.
type Result struct {
	Backend     store.Backend
	Preferences prefs.Store
	Cleanup     CleanupFunc
}

// Close runs the cleanup function if there is one.
func (r *Result) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
	// CreateMirror builds the Google Sheets client the worker mirrors into.
	CreateMirror(ctx context.Context, config Config) (*sheets.Client, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	APIBaseURL string
	APITimeout time.Duration

	SeedFile string

	SQLiteDBPath string

	RedisAddr string
	RedisKey  string

	Sheets sheets.Options
	// RowCacheSize and RowCacheTTL size the sheets id to row cache.
	RowCacheSize int
	RowCacheTTL  time.Duration
}
