package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yourorg/docbind/pkg/types"
)

const runColumns = `id,source_url,start_id,end_id,section_count,endpoint_count,warning_count,output_digest,status,error_msg,created_at,updated_at`

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_url TEXT NOT NULL,
			start_id TEXT NOT NULL,
			end_id TEXT NOT NULL,
			section_count INTEGER NOT NULL DEFAULT 0,
			endpoint_count INTEGER NOT NULL DEFAULT 0,
			warning_count INTEGER NOT NULL DEFAULT 0,
			output_digest TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error_msg TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_artifacts (
			run_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY(run_id, kind)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(sourceURL, startID, endID string) (*types.Run, error) {
	now := time.Now().UTC()
	id, err := s.nextRunID(now)
	if err != nil {
		return nil, err
	}
	run := &types.Run{ID: id, SourceURL: sourceURL, StartID: startID, EndID: endID, Status: types.RunStatusStarted, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.Exec(`INSERT INTO runs(`+runColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.SourceURL, run.StartID, run.EndID, run.SectionCount, run.EndpointCount, run.WarningCount, run.OutputDigest, run.Status, run.ErrorMsg, run.CreatedAt, run.UpdatedAt)
	return run, err
}

func (s *SQLiteStore) nextRunID(now time.Time) (string, error) {
	prefix := fmt.Sprintf("run_%s_", now.Format("20060102"))
	rows, err := s.db.Query(`SELECT id FROM runs WHERE id LIKE ?`, prefix+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()
	maxN := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		var n int
		_, _ = fmt.Sscanf(id, prefix+"%03d", &n)
		if n > maxN {
			maxN = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxN+1), rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*types.Run, error) {
	var r types.Run
	if err := row.Scan(&r.ID, &r.SourceURL, &r.StartID, &r.EndID, &r.SectionCount, &r.EndpointCount, &r.WarningCount, &r.OutputDigest, &r.Status, &r.ErrorMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) GetRun(id string) (*types.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

func (s *SQLiteStore) UpdateRunStatus(id, status, errMsg string) error {
	res, err := s.db.Exec(`UPDATE runs SET status=?, error_msg=?, updated_at=? WHERE id=?`, status, errMsg, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireAffected(res, "run "+id)
}

// FinishRun stores the counts and digest of a successful run and marks it
// generated.
func (s *SQLiteStore) FinishRun(run *types.Run) error {
	run.Status = types.RunStatusGenerated
	run.ErrorMsg = ""
	run.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(`UPDATE runs SET section_count=?, endpoint_count=?, warning_count=?, output_digest=?, status=?, error_msg=?, updated_at=? WHERE id=?`,
		run.SectionCount, run.EndpointCount, run.WarningCount, run.OutputDigest, run.Status, run.ErrorMsg, run.UpdatedAt, run.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, "run "+run.ID)
}

func (s *SQLiteStore) ListRuns() ([]types.Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM run_artifacts WHERE run_id=?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id=?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res, "run "+id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveArtifact(a *types.Artifact) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO run_artifacts(run_id,kind,content,created_at)
	VALUES(?,?,?,?)
	ON CONFLICT(run_id,kind) DO UPDATE SET content=excluded.content,created_at=excluded.created_at`,
		a.RunID, a.Kind, a.Content, a.CreatedAt)
	return err
}

func (s *SQLiteStore) GetArtifact(runID, kind string) (*types.Artifact, error) {
	row := s.db.QueryRow(`SELECT run_id,kind,content,created_at FROM run_artifacts WHERE run_id=? AND kind=?`, runID, kind)
	var a types.Artifact
	if err := row.Scan(&a.RunID, &a.Kind, &a.Content, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("artifact %s/%s: %w", runID, kind, ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) ListArtifactKinds(runID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT kind FROM run_artifacts WHERE run_id=? ORDER BY kind ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var kind string
		if err := rows.Scan(&kind); err != nil {
			return nil, err
		}
		out = append(out, kind)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
