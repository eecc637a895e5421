package repositories

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const membershipSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	crypt_algorithm TEXT NOT NULL,
	crypt_padding TEXT NOT NULL,
	crypt_mode TEXT NOT NULL,
	creator_id INTEGER NOT NULL,
	receiver_id INTEGER,
	FOREIGN KEY (creator_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id),
	CHECK (receiver_id IS NULL OR receiver_id <> creator_id)
);
`

// OpenMembershipDB opens (and bootstraps) the durable membership store.
// WAL mode and a busy timeout keep concurrent connect/disconnect writers
// from tripping over SQLITE_BUSY.
func OpenMembershipDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open membership store: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping membership store: %w", err)
	}
	if _, err = db.ExecContext(ctx, membershipSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap membership schema: %w", err)
	}
	return db, nil
}
