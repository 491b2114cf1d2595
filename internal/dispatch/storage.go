package dispatch

import (
	"errors"

	"github.com/sottey/dispatchtoo/internal/model"
)

var (
	ErrDispatchNotFound  = errors.New("dispatch not found")
	ErrDispatchFinalized = errors.New("dispatch finalized")
	ErrDispatchExists    = errors.New("dispatch already exists for that day")
	ErrTaskNotFound      = errors.New("task not found")
	ErrNotOwner          = errors.New("task belongs to a different owner")
	ErrInvalidDate       = errors.New("invalid calendar date")
)

// Patch is a partial dispatch update. nil pointer => "no change".
type Patch struct {
	Summary *string `json:"summary,omitempty"`
}

// Storage is the persistence port the lifecycle manager runs against. The
// surrounding application supplies it; the core never opens transactions or
// holds locks of its own. Two guarantees are pushed down here rather than
// implemented in-process:
//
//   - CreateDispatch enforces the one-dispatch-per-(owner, date) rule
//     atomically and reports a lost race as ErrDispatchExists, so template
//     materialization can never double-run for a day.
//   - SetFinalized flips the finalized latch conditionally and reports
//     whether this call performed the transition, so two finalizers racing
//     on one dispatch resolve to a single rollover.
type Storage interface {
	FindDispatch(ownerID model.UserID, date string) (*model.Dispatch, error)
	GetDispatch(id model.DispatchID) (model.Dispatch, error)
	CreateDispatch(ownerID model.UserID, date string) (model.Dispatch, error)
	UpdateDispatch(id model.DispatchID, patch Patch) (model.Dispatch, error)
	SetFinalized(id model.DispatchID, finalized bool) (dispatch model.Dispatch, changed bool, err error)

	// FindTemplateNote returns the owner's template note by its well-known
	// title, or nil when the owner has none.
	FindTemplateNote(ownerID model.UserID, title string) (*model.Note, error)

	CreateTask(ownerID model.UserID, title string, dueDate *string) (model.Task, error)
	GetTask(id model.TaskID) (model.Task, error)
	// TasksLinkedToDispatch excludes soft-deleted tasks.
	TasksLinkedToDispatch(id model.DispatchID) ([]model.Task, error)

	LinkExists(dispatchID model.DispatchID, taskID model.TaskID) (bool, error)
	CreateLink(dispatchID model.DispatchID, taskID model.TaskID) error
	DeleteLink(dispatchID model.DispatchID, taskID model.TaskID) error
}
