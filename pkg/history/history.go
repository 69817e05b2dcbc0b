// Package history persists chat sessions and their turns in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/xhad/subsearch/internal/models"
)

var ErrEmptyName = errors.New("session name is empty")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name TEXT NOT NULL UNIQUE,
	id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	query TEXT,
	response TEXT,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_history_session_idx ON chat_history (session_id);
`

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreateSession returns the session for name, creating it with a new
// UUID when it does not exist yet.
func (s *Store) GetOrCreateSession(ctx context.Context, name string) (models.Session, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Session{}, false, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlStr, args, err := builder.BuildSelect("sessions", map[string]interface{}{"name": name}, []string{"id"})
	if err != nil {
		return models.Session{}, false, err
	}
	var id string
	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id)
	if err == nil {
		return models.Session{Name: name, ID: id}, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, false, fmt.Errorf("lookup session: %w", err)
	}

	session := models.Session{Name: name, ID: uuid.NewString()}
	sqlStr, args, err = builder.BuildInsert("sessions", []map[string]interface{}{{
		"name": session.Name,
		"id":   session.ID,
	}})
	if err != nil {
		return models.Session{}, false, err
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return models.Session{}, false, fmt.Errorf("create session: %w", err)
	}
	return session, true, nil
}

func (s *Store) ListSessions(ctx context.Context) ([]models.Session, error) {
	sqlStr, args, err := builder.BuildSelect("sessions", map[string]interface{}{"_orderby": "name ASC"}, []string{"name", "id"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.Name, &sess.ID); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) Save(ctx context.Context, turn models.ChatTurn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	sqlStr, args, err := builder.BuildInsert("chat_history", []map[string]interface{}{{
		"session_id": turn.SessionID,
		"query":      turn.Query,
		"response":   turn.Response,
		"created_at": turn.CreatedAt.UnixMilli(),
	}})
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

// Load returns the most recent limit turns of a session, oldest first. A
// non-positive limit returns every turn.
func (s *Store) Load(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	where := map[string]interface{}{
		"session_id": sessionID,
		"_orderby":   "id DESC",
	}
	if limit > 0 {
		where["_limit"] = []uint{0, uint(limit)}
	}
	sqlStr, args, err := builder.BuildSelect("chat_history", where, []string{"query", "response", "created_at"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []models.ChatTurn
	for rows.Next() {
		var (
			q, r sql.NullString
			ms   int64
		)
		if err := rows.Scan(&q, &r, &ms); err != nil {
			return nil, err
		}
		turns = append(turns, models.ChatTurn{
			SessionID: sessionID,
			Query:     q.String,
			Response:  r.String,
			CreatedAt: time.UnixMilli(ms),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
