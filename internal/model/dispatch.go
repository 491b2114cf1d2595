package model

import "time"

type DispatchID string
type TaskID string
type NoteID string
type UserID string

type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// Dispatch is one owner's page for a single calendar day. At most one
// exists per (OwnerID, Date); it is created lazily and never deleted.
type Dispatch struct {
	ID        DispatchID `json:"id"`
	OwnerID   UserID     `json:"ownerId"`
	Date      string     `json:"date"` // YYYY-MM-DD
	Summary   string     `json:"summary,omitempty"`
	Finalized bool       `json:"finalized"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Task struct {
	ID      TaskID     `json:"id"`
	OwnerID UserID     `json:"ownerId"`
	Title   string     `json:"title"`
	DueDate *string    `json:"dueDate,omitempty"` // YYYY-MM-DD
	Status  TaskStatus `json:"status"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

func (t Task) Deleted() bool {
	return t.DeletedAt != nil
}

// Note is the slice of the notes domain this core reads: the owner's
// template note, looked up by its well-known title.
type Note struct {
	ID      NoteID `json:"id"`
	OwnerID UserID `json:"ownerId"`
	Title   string `json:"title"`
	Content string `json:"content"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
