// Package database persists scan results: repositories, pull requests,
// issues, their scoring signals, and scan history, in an embedded
// SQLite file with foreign keys and write-ahead logging enabled.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mahsumaktas/treliq/internal/domain"
)

// Store is the embedded relational store backing a Treliq installation.
type Store struct {
	db *sql.DB
}

// Open creates or opens the SQLite file at path, enabling foreign keys
// and WAL journaling, and creates the schema if it doesn't exist. Use
// ":memory:" for a transient in-process database (used by tests).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying connection, for callers (tests, ad-hoc
// reporting queries) that need direct SQL access.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS repositories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner TEXT NOT NULL,
		repo TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		last_scan INTEGER,
		UNIQUE(owner, repo)
	);

	CREATE TABLE IF NOT EXISTS pull_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id INTEGER NOT NULL,
		pr_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		total_score REAL NOT NULL,
		is_spam INTEGER NOT NULL DEFAULT 0,
		intent TEXT,
		duplicate_group INTEGER NOT NULL DEFAULT 0,
		vision_alignment TEXT,
		state TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		stored_at INTEGER NOT NULL,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repo_id, pr_number)
	);

	CREATE TABLE IF NOT EXISTS issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id INTEGER NOT NULL,
		issue_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		total_score REAL NOT NULL,
		is_spam INTEGER NOT NULL DEFAULT 0,
		intent TEXT,
		duplicate_group INTEGER NOT NULL DEFAULT 0,
		vision_alignment TEXT,
		state TEXT NOT NULL,
		config_hash TEXT NOT NULL,
		stored_at INTEGER NOT NULL,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(repo_id, issue_number)
	);

	CREATE TABLE IF NOT EXISTS scoring_signals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		pr_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		score REAL NOT NULL,
		weight REAL NOT NULL,
		reason TEXT,
		FOREIGN KEY (pr_id) REFERENCES pull_requests(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS scan_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id INTEGER NOT NULL,
		scanned_at INTEGER NOT NULL,
		total_prs INTEGER NOT NULL,
		spam_count INTEGER NOT NULL,
		dup_clusters INTEGER NOT NULL,
		config_hash TEXT NOT NULL,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS installations (
		id INTEGER PRIMARY KEY,
		account_type TEXT NOT NULL,
		account_login TEXT NOT NULL,
		suspended_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS installation_repos (
		installation_id INTEGER NOT NULL,
		repo_id INTEGER NOT NULL,
		FOREIGN KEY (installation_id) REFERENCES installations(id) ON DELETE CASCADE,
		FOREIGN KEY (repo_id) REFERENCES repositories(id) ON DELETE CASCADE,
		UNIQUE(installation_id, repo_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pr_repo_number ON pull_requests(repo_id, pr_number);
	CREATE INDEX IF NOT EXISTS idx_pr_state ON pull_requests(state);
	CREATE INDEX IF NOT EXISTS idx_pr_total_score ON pull_requests(total_score DESC);
	CREATE INDEX IF NOT EXISTS idx_pr_is_spam ON pull_requests(is_spam);
	CREATE INDEX IF NOT EXISTS idx_pr_duplicate_group ON pull_requests(duplicate_group);
	CREATE INDEX IF NOT EXISTS idx_scan_history_repo_scanned ON scan_history(repo_id, scanned_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertRepository inserts a repository row if absent and returns its id.
func (s *Store) UpsertRepository(ctx context.Context, owner, repo string, now time.Time) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repositories (owner, repo, created_at, last_scan) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner, repo) DO UPDATE SET last_scan = excluded.last_scan`,
		owner, repo, now.Unix(), now.Unix())
	if err != nil {
		return 0, fmt.Errorf("upsert repository: %w", err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM repositories WHERE owner = ? AND repo = ?`, owner, repo).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup repository id: %w", err)
	}
	return id, nil
}

// SavePRResult upserts a scored PR and its signal breakdown inside a
// single transaction.
func (s *Store) SavePRResult(ctx context.Context, repoID int64, item domain.ScoredItem, configHash string, storedAt time.Time) error {
	if item.Kind != "pr" {
		return fmt.Errorf("SavePRResult called with kind %q", item.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	state := "open"
	if item.PR != nil && item.PR.Draft {
		state = "draft"
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO pull_requests (repo_id, pr_number, title, author, total_score, is_spam, intent, duplicate_group, vision_alignment, state, config_hash, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(repo_id, pr_number) DO UPDATE SET
			title = excluded.title, total_score = excluded.total_score, is_spam = excluded.is_spam,
			intent = excluded.intent, duplicate_group = excluded.duplicate_group,
			vision_alignment = excluded.vision_alignment, state = excluded.state,
			config_hash = excluded.config_hash, stored_at = excluded.stored_at`,
		repoID, item.Number, titleOf(item), authorOf(item), item.TotalScore, boolToInt(item.IsSpam),
		item.Intent, item.DuplicateGroup, string(item.VisionAlignment), state, configHash, storedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert pull request: %w", err)
	}

	prID, err := res.LastInsertId()
	if err != nil || prID == 0 {
		if err := tx.QueryRowContext(ctx, `SELECT id FROM pull_requests WHERE repo_id = ? AND pr_number = ?`, repoID, item.Number).Scan(&prID); err != nil {
			return fmt.Errorf("lookup pull request id: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scoring_signals WHERE pr_id = ?`, prID); err != nil {
		return fmt.Errorf("clear old signals: %w", err)
	}
	for _, sig := range item.Signals {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scoring_signals (pr_id, name, score, weight, reason) VALUES (?, ?, ?, ?, ?)`,
			prID, sig.Name, sig.Score, sig.Weight, sig.Reason); err != nil {
			return fmt.Errorf("insert signal %s: %w", sig.Name, err)
		}
	}

	return tx.Commit()
}

// AppendScanHistory records a single scan's summary statistics.
func (s *Store) AppendScanHistory(ctx context.Context, repoID int64, scannedAt time.Time, totalPRs, spamCount, dupClusters int, configHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_history (repo_id, scanned_at, total_prs, spam_count, dup_clusters, config_hash) VALUES (?, ?, ?, ?, ?, ?)`,
		repoID, scannedAt.Unix(), totalPRs, spamCount, dupClusters, configHash)
	if err != nil {
		return fmt.Errorf("append scan history: %w", err)
	}
	return nil
}

func titleOf(item domain.ScoredItem) string {
	if item.PR != nil {
		return item.PR.Title
	}
	if item.Issue != nil {
		return item.Issue.Title
	}
	return ""
}

func authorOf(item domain.ScoredItem) string {
	if item.PR != nil {
		return item.PR.Author
	}
	if item.Issue != nil {
		return item.Issue.Author
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
