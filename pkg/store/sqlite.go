package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    system_prompt TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL,
    seq           INTEGER
);
CREATE TABLE IF NOT EXISTS messages (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    ord        INTEGER NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    timestamp  TEXT NOT NULL,
    PRIMARY KEY (session_id, ord)
);
`

// SQLiteStore persists sessions in a local SQLite database so history
// survives restarts. Single-process access only.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	s := &SQLiteStore{db: db}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, errors.Wrap(err, "init schema")
	}
	log.Info().Str("path", path).Msg("opened sqlite session store")
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) insert(ctx context.Context, id string) (*Session, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions").Scan(&count); err != nil {
		return nil, errors.Wrap(err, "count sessions")
	}
	sess := &Session{
		ID:        id,
		Name:      fmt.Sprintf("Chat %d", count+1),
		CreatedAt: now(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions(id, name, system_prompt, created_at, seq) VALUES(?,?,?,?,(SELECT COALESCE(MAX(seq),0)+1 FROM sessions))",
		sess.ID, sess.Name, "", sess.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert session")
	}
	return sess, nil
}

func (s *SQLiteStore) Create(ctx context.Context) (*Session, error) {
	return s.insert(ctx, uuid.NewString())
}

func (s *SQLiteStore) Ensure(ctx context.Context, id string) (*Session, error) {
	sess := &Session{ID: id}
	err := s.db.QueryRowContext(ctx,
		"SELECT name, system_prompt, created_at FROM sessions WHERE id=?", id).
		Scan(&sess.Name, &sess.SystemPrompt, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return s.insert(ctx, id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select session")
	}
	return sess, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, system_prompt, created_at FROM sessions ORDER BY seq")
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer func() { _ = rows.Close() }()
	var out []*Session
	for rows.Next() {
		sess := &Session{}
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.SystemPrompt, &sess.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id=?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "check session")
	}
	return true, nil
}

func (s *SQLiteStore) Rename(ctx context.Context, id string, name string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET name=? WHERE id=?", name, id)
	if err != nil {
		return errors.Wrap(err, "rename session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id=?", id); err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, id string) error {
	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id=?", id); err != nil {
		return errors.Wrap(err, "clear messages")
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE sessions SET system_prompt='' WHERE id=?", id); err != nil {
		return errors.Wrap(err, "clear system prompt")
	}
	return nil
}

func (s *SQLiteStore) Messages(ctx context.Context, id string) ([]Message, error) {
	ok, err := s.exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id=? ORDER BY ord", id)
	if err != nil {
		return nil, errors.Wrap(err, "select messages")
	}
	defer func() { _ = rows.Close() }()
	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Import(ctx context.Context, id string, msgs []Message) (int, error) {
	ok, err := s.exists(ctx, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin import")
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id=?", id); err != nil {
		return 0, errors.Wrap(err, "clear messages")
	}
	for i, m := range msgs {
		m = stamped(m)
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO messages(session_id, ord, role, content, timestamp) VALUES(?,?,?,?,?)",
			id, i, m.Role, m.Content, m.Timestamp); err != nil {
			return 0, errors.Wrap(err, "insert message")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit import")
	}
	return len(msgs), nil
}

func (s *SQLiteStore) Append(ctx context.Context, id string, msg Message) error {
	ok, err := s.exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	msg = stamped(msg)
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages(session_id, ord, role, content, timestamp) VALUES(?, (SELECT COALESCE(MAX(ord),-1)+1 FROM messages WHERE session_id=?), ?, ?, ?)",
		id, id, msg.Role, msg.Content, msg.Timestamp)
	return errors.Wrap(err, "append message")
}

func (s *SQLiteStore) SystemPrompt(ctx context.Context, id string) (string, error) {
	var prompt string
	err := s.db.QueryRowContext(ctx, "SELECT system_prompt FROM sessions WHERE id=?", id).Scan(&prompt)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "select system prompt")
	}
	return prompt, nil
}

func (s *SQLiteStore) SetSystemPrompt(ctx context.Context, id string, prompt string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE sessions SET system_prompt=? WHERE id=?", prompt, id)
	if err != nil {
		return errors.Wrap(err, "set system prompt")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
