// Package store supplies the Storage implementations the dispatch core
// runs against: an in-memory store used by tests and single-session runs,
// and a sqlite store for durable data.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sottey/dispatchtoo/internal/dispatch"
	"github.com/sottey/dispatchtoo/internal/model"
)

type linkKey struct {
	dispatchID model.DispatchID
	taskID     model.TaskID
}

type ownerDate struct {
	ownerID model.UserID
	date    string
}

// Memory is a map-backed Storage. The single mutex stands in for the
// atomic primitives a database would provide: dispatch uniqueness and the
// finalized-latch flip both happen under it.
type Memory struct {
	mu         sync.RWMutex
	dispatches map[model.DispatchID]model.Dispatch
	byDay      map[ownerDate]model.DispatchID
	tasks      map[model.TaskID]model.Task
	taskSeq    map[model.TaskID]int
	nextSeq    int
	notes      map[model.NoteID]model.Note
	links      map[linkKey]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		dispatches: map[model.DispatchID]model.Dispatch{},
		byDay:      map[ownerDate]model.DispatchID{},
		tasks:      map[model.TaskID]model.Task{},
		taskSeq:    map[model.TaskID]int{},
		notes:      map[model.NoteID]model.Note{},
		links:      map[linkKey]struct{}{},
	}
}

func (m *Memory) FindDispatch(ownerID model.UserID, date string) (*model.Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byDay[ownerDate{ownerID, date}]
	if !ok {
		return nil, nil
	}
	d := m.dispatches[id]
	return &d, nil
}

func (m *Memory) GetDispatch(id model.DispatchID) (model.Dispatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dispatches[id]
	if !ok {
		return model.Dispatch{}, dispatch.ErrDispatchNotFound
	}
	return d, nil
}

func (m *Memory) CreateDispatch(ownerID model.UserID, date string) (model.Dispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := ownerDate{ownerID, date}
	if _, ok := m.byDay[key]; ok {
		return model.Dispatch{}, dispatch.ErrDispatchExists
	}

	now := time.Now()
	d := model.Dispatch{
		ID:        model.DispatchID("disp_" + uuid.NewString()),
		OwnerID:   ownerID,
		Date:      date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.dispatches[d.ID] = d
	m.byDay[key] = d.ID
	return d, nil
}

func (m *Memory) UpdateDispatch(id model.DispatchID, patch dispatch.Patch) (model.Dispatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dispatches[id]
	if !ok {
		return model.Dispatch{}, dispatch.ErrDispatchNotFound
	}
	if patch.Summary != nil {
		d.Summary = *patch.Summary
	}
	d.UpdatedAt = time.Now()
	m.dispatches[id] = d
	return d, nil
}

func (m *Memory) SetFinalized(id model.DispatchID, finalized bool) (model.Dispatch, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.dispatches[id]
	if !ok {
		return model.Dispatch{}, false, dispatch.ErrDispatchNotFound
	}
	if d.Finalized == finalized {
		return d, false, nil
	}
	d.Finalized = finalized
	d.UpdatedAt = time.Now()
	m.dispatches[id] = d
	return d, true, nil
}

func (m *Memory) FindTemplateNote(ownerID model.UserID, title string) (*model.Note, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, n := range m.notes {
		if n.OwnerID == ownerID && n.Title == title {
			note := n
			return &note, nil
		}
	}
	return nil, nil
}

// SaveNote upserts by (owner, title). Note CRUD proper lives outside the
// core; this is just enough for the template note.
func (m *Memory) SaveNote(ownerID model.UserID, title, content string) model.Note {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, n := range m.notes {
		if n.OwnerID == ownerID && n.Title == title {
			n.Content = content
			n.UpdatedAt = now
			m.notes[id] = n
			return n
		}
	}
	n := model.Note{
		ID:        model.NoteID("note_" + uuid.NewString()),
		OwnerID:   ownerID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.notes[n.ID] = n
	return n
}

func (m *Memory) CreateTask(ownerID model.UserID, title string, dueDate *string) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	t := model.Task{
		ID:        model.TaskID("task_" + uuid.NewString()),
		OwnerID:   ownerID,
		Title:     title,
		DueDate:   dueDate,
		Status:    model.StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.tasks[t.ID] = t
	m.nextSeq++
	m.taskSeq[t.ID] = m.nextSeq
	return t, nil
}

func (m *Memory) GetTask(id model.TaskID) (model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return model.Task{}, dispatch.ErrTaskNotFound
	}
	return t, nil
}

// SetTaskStatus is used by the surrounding application (and tests); the
// dispatch core itself only reads task status.
func (m *Memory) SetTaskStatus(id model.TaskID, status model.TaskStatus) (model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return model.Task{}, dispatch.ErrTaskNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	m.tasks[id] = t
	return t, nil
}

// SoftDeleteTask marks the task deleted and cascades its dispatch links
// away, matching the database's ON DELETE behavior.
func (m *Memory) SoftDeleteTask(id model.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return dispatch.ErrTaskNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	t.UpdatedAt = now
	m.tasks[id] = t

	for k := range m.links {
		if k.taskID == id {
			delete(m.links, k)
		}
	}
	return nil
}

func (m *Memory) TasksLinkedToDispatch(id model.DispatchID) ([]model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Task, 0)
	for k := range m.links {
		if k.dispatchID != id {
			continue
		}
		t, ok := m.tasks[k.taskID]
		if !ok || t.Deleted() {
			continue
		}
		out = append(out, t)
	}
	sortTasks(out, m.taskSeq)
	return out, nil
}

func (m *Memory) LinkExists(dispatchID model.DispatchID, taskID model.TaskID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.links[linkKey{dispatchID, taskID}]
	return ok, nil
}

func (m *Memory) CreateLink(dispatchID model.DispatchID, taskID model.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.links[linkKey{dispatchID, taskID}] = struct{}{}
	return nil
}

func (m *Memory) DeleteLink(dispatchID model.DispatchID, taskID model.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.links, linkKey{dispatchID, taskID})
	return nil
}
