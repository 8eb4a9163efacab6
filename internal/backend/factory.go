package backend

import (
	"context"
	"errors"
	"fmt"

	"cashbook/internal/cache"
	"cashbook/internal/log"
	"cashbook/internal/prefs"
	"cashbook/internal/store/httpapi"
	"cashbook/internal/store/memory"
	"cashbook/internal/store/redis"
	"cashbook/internal/store/sheets"
	"cashbook/internal/store/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
	caches *cache.Manager
}

// NewFactory creates a backend factory. Caches the backends build are
// registered with caches when it is not nil.
func NewFactory(logger *log.Logger, caches *cache.Manager) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
		caches: caches,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case HTTPBackend:
		return f.createHTTPBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case RedisBackend:
		return f.createRedisBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createHTTPBackend(config Config) (*Result, error) {
	client, err := httpapi.New(config.APIBaseURL, config.APITimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST backend: %w", err)
	}
	f.logger.Info("Initialized REST backend", "base_url", config.APIBaseURL, "timeout", config.APITimeout)
	return &Result{Backend: client, Preferences: prefs.NewMemory()}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*Result, error) {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return &Result{Backend: memory.New(), Preferences: prefs.NewMemory()}, nil
	}
	st, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return &Result{Backend: st, Preferences: prefs.NewMemory()}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	repo, err := sqlite.Open(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &Result{Backend: repo, Preferences: repo.Preferences(), Cleanup: repo.Close}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*Result, error) {
	st, err := redis.Connect(ctx, config.RedisAddr, config.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis backend: %w", err)
	}
	f.logger.Info("Initialized Redis backend", "addr", config.RedisAddr, "key", config.RedisKey)
	return &Result{Backend: st, Preferences: st.Preferences(), Cleanup: st.Close}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*Result, error) {
	client, err := f.CreateMirror(ctx, config)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Initialized Google Sheets backend", "sheet", config.Sheets.SheetName)
	return &Result{Backend: client, Preferences: prefs.NewMemory()}, nil
}

// CreateMirror builds a sheets client and makes sure its header row exists.
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*sheets.Client, error) {
	if config.Sheets.SpreadsheetID == "" {
		return nil, errors.New("Google Spreadsheet ID is required")
	}
	size := config.RowCacheSize
	if size <= 0 {
		size = 1024
	}
	rows := cache.NewLRUCache[int](size, config.RowCacheTTL)
	if f.caches != nil {
		f.caches.Register(rows)
	}

	client, err := sheets.New(ctx, config.Sheets, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare sheet: %w", err)
	}
	return client, nil
}
