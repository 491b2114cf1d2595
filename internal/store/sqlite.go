package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sottey/dispatchtoo/internal/dispatch"
	"github.com/sottey/dispatchtoo/internal/model"
)

// SQLite is the durable Storage. The schema carries the two invariants the
// core leans on: UNIQUE(owner_id, date) on dispatches, and the conditional
// finalized update in SetFinalized.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS dispatches (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			date TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			finalized INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(owner_id, date)
		);

		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			due_date TEXT,
			status TEXT NOT NULL DEFAULT 'open',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			deleted_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS dispatch_tasks (
			dispatch_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			PRIMARY KEY (dispatch_id, task_id)
		);

		CREATE INDEX IF NOT EXISTS idx_notes_owner_title ON notes(owner_id, title);
		CREATE INDEX IF NOT EXISTS idx_dispatch_tasks_task ON dispatch_tasks(task_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

const dispatchColumns = "id, owner_id, date, summary, finalized, created_at, updated_at"

func scanDispatch(row interface{ Scan(...any) error }) (model.Dispatch, error) {
	var d model.Dispatch
	err := row.Scan(&d.ID, &d.OwnerID, &d.Date, &d.Summary, &d.Finalized, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *SQLite) FindDispatch(ownerID model.UserID, date string) (*model.Dispatch, error) {
	row := s.db.QueryRow(
		"SELECT "+dispatchColumns+" FROM dispatches WHERE owner_id = ? AND date = ?",
		ownerID, date)
	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *SQLite) GetDispatch(id model.DispatchID) (model.Dispatch, error) {
	row := s.db.QueryRow("SELECT "+dispatchColumns+" FROM dispatches WHERE id = ?", id)
	d, err := scanDispatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Dispatch{}, dispatch.ErrDispatchNotFound
	}
	return d, err
}

func (s *SQLite) CreateDispatch(ownerID model.UserID, date string) (model.Dispatch, error) {
	now := time.Now().UTC()
	d := model.Dispatch{
		ID:        model.DispatchID("disp_" + uuid.NewString()),
		OwnerID:   ownerID,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(
		"INSERT INTO dispatches (id, owner_id, date, summary, finalized, created_at, updated_at) VALUES (?, ?, ?, '', 0, ?, ?)",
		d.ID, d.OwnerID, d.Date, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return model.Dispatch{}, dispatch.ErrDispatchExists
		}
		return model.Dispatch{}, err
	}
	return d, nil
}

func (s *SQLite) UpdateDispatch(id model.DispatchID, patch dispatch.Patch) (model.Dispatch, error) {
	if patch.Summary != nil {
		res, err := s.db.Exec(
			"UPDATE dispatches SET summary = ?, updated_at = ? WHERE id = ?",
			*patch.Summary, time.Now().UTC(), id)
		if err != nil {
			return model.Dispatch{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.Dispatch{}, dispatch.ErrDispatchNotFound
		}
	}
	return s.GetDispatch(id)
}

// SetFinalized flips the latch only when the row is not already in the
// target state; the WHERE clause makes the transition atomic under
// concurrent finalizers.
func (s *SQLite) SetFinalized(id model.DispatchID, finalized bool) (model.Dispatch, bool, error) {
	res, err := s.db.Exec(
		"UPDATE dispatches SET finalized = ?, updated_at = ? WHERE id = ? AND finalized = ?",
		finalized, time.Now().UTC(), id, !finalized)
	if err != nil {
		return model.Dispatch{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Dispatch{}, false, err
	}
	d, err := s.GetDispatch(id)
	if err != nil {
		return model.Dispatch{}, false, err
	}
	return d, n > 0, nil
}

func (s *SQLite) FindTemplateNote(ownerID model.UserID, title string) (*model.Note, error) {
	row := s.db.QueryRow(
		"SELECT id, owner_id, title, content, created_at, updated_at FROM notes WHERE owner_id = ? AND title = ? ORDER BY created_at LIMIT 1",
		ownerID, title)
	var n model.Note
	err := row.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// SaveNote upserts by (owner, title).
func (s *SQLite) SaveNote(ownerID model.UserID, title, content string) (model.Note, error) {
	now := time.Now().UTC()
	existing, err := s.FindTemplateNote(ownerID, title)
	if err != nil {
		return model.Note{}, err
	}
	if existing != nil {
		_, err := s.db.Exec(
			"UPDATE notes SET content = ?, updated_at = ? WHERE id = ?",
			content, now, existing.ID)
		if err != nil {
			return model.Note{}, err
		}
		existing.Content = content
		existing.UpdatedAt = now
		return *existing, nil
	}
	n := model.Note{
		ID:        model.NoteID("note_" + uuid.NewString()),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.Exec(
		"INSERT INTO notes (id, owner_id, title, content, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.OwnerID, n.Title, n.Content, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return model.Note{}, err
	}
	return n, nil
}

const taskColumns = "id, owner_id, title, due_date, status, created_at, updated_at, deleted_at"

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var t model.Task
	var due sql.NullString
	var deleted sql.NullTime
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &due, &t.Status, &t.CreatedAt, &t.UpdatedAt, &deleted)
	if err != nil {
		return model.Task{}, err
	}
	if due.Valid {
		t.DueDate = &due.String
	}
	if deleted.Valid {
		t.DeletedAt = &deleted.Time
	}
	return t, nil
}

func (s *SQLite) CreateTask(ownerID model.UserID, title string, dueDate *string) (model.Task, error) {
	now := time.Now().UTC()
	t := model.Task{
		ID:        model.TaskID("task_" + uuid.NewString()),
		OwnerID:   ownerID,
		Title:     title,
		DueDate:   dueDate,
		Status:    model.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var due any
	if dueDate != nil {
		due = *dueDate
	}
	_, err := s.db.Exec(
		"INSERT INTO tasks (id, owner_id, title, due_date, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		t.ID, t.OwnerID, t.Title, due, t.Status, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return model.Task{}, err
	}
	return t, nil
}

func (s *SQLite) GetTask(id model.TaskID) (model.Task, error) {
	row := s.db.QueryRow("SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, dispatch.ErrTaskNotFound
	}
	return t, err
}

func (s *SQLite) SetTaskStatus(id model.TaskID, status model.TaskStatus) (model.Task, error) {
	res, err := s.db.Exec(
		"UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		status, time.Now().UTC(), id)
	if err != nil {
		return model.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Task{}, dispatch.ErrTaskNotFound
	}
	return s.GetTask(id)
}

// SoftDeleteTask marks the task deleted and cascades its links away.
func (s *SQLite) SoftDeleteTask(id model.TaskID) error {
	res, err := s.db.Exec(
		"UPDATE tasks SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		time.Now().UTC(), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return dispatch.ErrTaskNotFound
	}
	_, err = s.db.Exec("DELETE FROM dispatch_tasks WHERE task_id = ?", id)
	return err
}

func (s *SQLite) TasksLinkedToDispatch(id model.DispatchID) ([]model.Task, error) {
	rows, err := s.db.Query(
		"SELECT "+taskColumns+" FROM tasks"+
			" JOIN dispatch_tasks ON dispatch_tasks.task_id = tasks.id"+
			" WHERE dispatch_tasks.dispatch_id = ? AND tasks.deleted_at IS NULL"+
			" ORDER BY tasks.rowid",
		id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) LinkExists(dispatchID model.DispatchID, taskID model.TaskID) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM dispatch_tasks WHERE dispatch_id = ? AND task_id = ?",
		dispatchID, taskID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) CreateLink(dispatchID model.DispatchID, taskID model.TaskID) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO dispatch_tasks (dispatch_id, task_id) VALUES (?, ?)",
		dispatchID, taskID)
	if err != nil {
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteLink(dispatchID model.DispatchID, taskID model.TaskID) error {
	_, err := s.db.Exec(
		"DELETE FROM dispatch_tasks WHERE dispatch_id = ? AND task_id = ?",
		dispatchID, taskID)
	return err
}
