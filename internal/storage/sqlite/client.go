package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/storage/models"
	"github.com/farmrag/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS upload_runs (
		id TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		namespace TEXT NOT NULL,
		mime_type TEXT,
		text_length INTEGER,
		chunks_processed INTEGER,
		chunks_skipped INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_namespace ON upload_runs(namespace);
	CREATE INDEX IF NOT EXISTS idx_uploads_created ON upload_runs(created_at);

	CREATE TABLE IF NOT EXISTS chat_records (
		id TEXT PRIMARY KEY,
		namespace TEXT,
		message TEXT NOT NULL,
		response TEXT,
		outcome TEXT,
		sources_count INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chats_namespace ON chat_records(namespace);
	CREATE INDEX IF NOT EXISTS idx_chats_created ON chat_records(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

func (c *Client) InsertUploadRun(run *models.UploadRun) error {
	_, err := c.db.Exec(
		`INSERT INTO upload_runs
		(id, source_name, namespace, mime_type, text_length, chunks_processed, chunks_skipped, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SourceName, run.Namespace, run.MimeType,
		run.TextLength, run.ChunksProcessed, run.ChunksSkipped,
		run.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload run: %w", err)
	}
	return nil
}

func (c *Client) InsertChatRecord(rec *models.ChatRecord) error {
	_, err := c.db.Exec(
		`INSERT INTO chat_records
		(id, namespace, message, response, outcome, sources_count, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Namespace, rec.Message, rec.Response,
		rec.Outcome, rec.SourcesCount, rec.LatencyMS,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}
	return nil
}

func (c *Client) GetRecentChats(limit int) ([]models.ChatRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := c.db.Query(
		`SELECT id, namespace, message, response, outcome, sources_count, latency_ms, created_at
		FROM chat_records ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var rec models.ChatRecord
		var createdAt int64
		err := rows.Scan(&rec.ID, &rec.Namespace, &rec.Message, &rec.Response,
			&rec.Outcome, &rec.SourcesCount, &rec.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}

	return records, rows.Err()
}
