package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"klinechart/utils/db"
	"klinechart/utils/db/tx"
	"klinechart/utils/log"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS preferences (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

type SQLiteStore struct {
	database *db.Database
	tx       tx.TxExtension
	now      func() time.Time
}

// NewSQLiteStore : 파일을 열고(없으면 생성) 테이블 준비. ":memory:" 도 가능
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// 단일 writer. ":memory:" 는 커넥션마다 DB 가 달라서 1개로 고정해야 함
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	database := &db.Database{DbForJet: conn}
	log.Infof("[PREFS] sqlite store opened: %s", path)
	return &SQLiteStore{
		database: database,
		tx:       tx.TxExtension{Database: database},
		now:      time.Now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	rows, err := s.tx.GetTx(ctx).QueryContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("select %s: %w", key, err)
		}
		return nil, ErrNotFound
	}
	var value string
	if err := rows.Scan(&value); err != nil {
		return nil, fmt.Errorf("scan %s: %w", key, err)
	}
	return []byte(value), nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := db.Transaction(func(ctx context.Context) (int64, error) {
		res, err := s.tx.GetTx(ctx).ExecContext(ctx,
			`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, string(value), s.now().UnixMilli())
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}).Failed(func(err error) (int64, error) {
		return 0, fmt.Errorf("upsert %s: %w", key, err)
	}).Run(ctx, s.database.DbForJet)
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.tx.GetTx(ctx).ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.database.DbForJet.Close()
}
