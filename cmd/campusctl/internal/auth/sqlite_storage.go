package auth

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schoolops/campus/pkg/sdk"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // SQLite driver
)

const sessionDB = "session.db"

// sessionSlot is one durable slot row.
type sessionSlot struct {
	bun.BaseModel `bun:"table:session_slots,alias:ss"`

	Slot      string    `bun:"slot,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLiteStorage implements sdk.SessionStorage on a SQLite database, one row
// per slot. Both rows change in a single transaction.
type SQLiteStorage struct {
	db *bun.DB
}

// Ensure SQLiteStorage implements sdk.SessionStorage at compile time.
var _ sdk.SessionStorage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens (and if needed creates) the session database. An
// empty dsn selects session.db inside dir.
func NewSQLiteStorage(ctx context.Context, dir, dsn string) (*SQLiteStorage, error) {
	if dsn == "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create session directory: %w", err)
		}
		dsn = "file:" + filepath.Join(dir, sessionDB) + "?_pragma=busy_timeout(5000)"
	}

	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between our own goroutines.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	if _, err := db.NewCreateTable().Model((*sessionSlot)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_slots table: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Load(ctx context.Context) (sdk.Slots, error) {
	var rows []sessionSlot
	err := s.db.NewSelect().
		Model(&rows).
		Where("slot IN (?)", bun.In([]string{sdk.CredentialSlot, sdk.ProfileSlot})).
		Scan(ctx)
	if err != nil {
		return sdk.Slots{}, fmt.Errorf("failed to read session slots: %w", err)
	}

	var slots sdk.Slots
	for _, row := range rows {
		switch row.Slot {
		case sdk.CredentialSlot:
			slots.Credential = row.Value
		case sdk.ProfileSlot:
			slots.Profile = []byte(row.Value)
		}
	}
	return slots, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, slots sdk.Slots) error {
	now := time.Now().UTC()
	rows := []sessionSlot{
		{Slot: sdk.CredentialSlot, Value: slots.Credential, UpdatedAt: now},
		{Slot: sdk.ProfileSlot, Value: string(slots.Profile), UpdatedAt: now},
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (slot) DO UPDATE").
			Set("value = EXCLUDED.value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save session slots: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStorage) Clear(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().
			Model((*sessionSlot)(nil)).
			Where("slot IN (?)", bun.In([]string{sdk.CredentialSlot, sdk.ProfileSlot})).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear session slots: %w", err)
		}
		return nil
	})
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
