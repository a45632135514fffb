package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

const upsertProfileSQL = `
INSERT INTO profiles (user_id, seq, score, data, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
	seq = excluded.seq,
	score = excluded.score,
	data = excluded.data,
	updated_at = excluded.updated_at`

type profileRow struct {
	UserID int64  `db:"user_id"`
	Seq    int64  `db:"seq"`
	Score  int64  `db:"score"`
	Data   string `db:"data"`
}

// SQLBackend stores one row per profile and rewrites the whole set inside a
// single transaction, so a failed write leaves the previous snapshot intact.
type SQLBackend struct {
	db *sqlx.DB
}

// NewSQLBackend wraps an open connection whose schema was migrated already.
func NewSQLBackend(db *sqlx.DB) *SQLBackend {
	return &SQLBackend{db: db}
}

// Name identifies the backend in logs.
func (b *SQLBackend) Name() string { return "sql." + b.db.DriverName() }

// Load reads every row into a document.
func (b *SQLBackend) Load(ctx context.Context) (*Document, error) {
	var rows []profileRow
	if err := b.db.SelectContext(ctx, &rows, `SELECT user_id, seq, score, data FROM profiles ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	doc := &Document{Version: SchemaVersion, Profiles: make(map[string]*Profile, len(rows))}
	for _, row := range rows {
		p := &Profile{}
		if err := json.Unmarshal([]byte(row.Data), p); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorruptDocument, row.UserID, err)
		}
		p.Seq = row.Seq
		p.Score = row.Score
		doc.Profiles[strconv.FormatInt(row.UserID, 10)] = p
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save upserts every profile in one transaction.
func (b *SQLBackend) Save(ctx context.Context, doc *Document) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	query := tx.Rebind(upsertProfileSQL)
	now := time.Now().UTC()
	for key, p := range doc.Profiles {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("bad user id %q: %w", key, err)
		}
		data, err := json.Marshal(p)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("encode profile %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, query, id, p.Seq, p.Score, string(data), now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert profile %d: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
