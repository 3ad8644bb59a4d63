package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage implementation
type Storage struct {
	db  *sql.DB
	now func() time.Time
	// lastChange последняя выданная отметка changed_at (UnixNano)
	lastChange int64
	mu         sync.Mutex
}

// New creates a new SQLite storage instance
// dbPath is the path to the SQLite database file
// Use ":memory:" for in-memory database (useful for testing)
func New(ctx context.Context, dbPath string) (*Storage, error) {
	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite поддерживает только одного писателя; одно соединение также
	// сериализует транзакции ApplyEntity, что сохраняет порядок changed_at
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{db: db, now: time.Now}

	// Запускаем миграции
	if err := storage.runMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(changed_at), 0) FROM entities`).Scan(&storage.lastChange); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load last change time: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations() error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// nextChangeTime выдает строго возрастающую отметку изменения, чтобы курсор
// GetChangesSince не пропускал записи с одинаковым временем
func (s *Storage) nextChangeTime() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixNano()
	if stamp <= s.lastChange {
		stamp = s.lastChange + 1
	}
	s.lastChange = stamp
	return stamp
}

// changeWatermark возвращает отметку, не меньшую любой уже выданной changed_at,
// и сдвигает lastChange так, что следующие изменения получат отметку строго больше.
// Отметки берутся по часам сервера, клиентские часы в курсор не попадают.
func (s *Storage) changeWatermark() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := s.now().UnixNano()
	if stamp < s.lastChange {
		stamp = s.lastChange
	}
	s.lastChange = stamp
	return stamp
}
