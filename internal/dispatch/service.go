package dispatch

import (
	"errors"
	"fmt"
	"log"

	"github.com/sottey/dispatchtoo/internal/calendar"
	"github.com/sottey/dispatchtoo/internal/model"
	"github.com/sottey/dispatchtoo/internal/template"
)

// DefaultTemplateNoteTitle is the well-known note title the daily template
// is looked up under when the config does not override it.
const DefaultTemplateNoteTitle = "Daily Template"

// Service drives the dispatch lifecycle: lazy creation with exactly-once
// template materialization, link management, and the finalize/unfinalize
// rollover protocol. It is synchronous and stateless between calls; all
// race tolerance lives at the Storage boundary.
type Service struct {
	store  Storage
	logger *log.Logger

	noteTitle string
}

func NewService(store Storage, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		store:     store,
		logger:    logger,
		noteTitle: DefaultTemplateNoteTitle,
	}
}

// SetTemplateNoteTitle overrides the note title template expansion reads.
func (s *Service) SetTemplateNoteTitle(title string) {
	if title != "" {
		s.noteTitle = title
	}
}

type GetOrCreateResult struct {
	Dispatch          model.Dispatch `json:"dispatch"`
	Created           bool           `json:"created"`
	TemplateTaskCount int            `json:"templateTaskCount"`
}

// GetOrCreateDispatch returns the owner's dispatch for date, creating it
// and materializing the owner's template into it the first time the date is
// requested. Losing a concurrent creation race is not an error: the
// winner's row is re-read and returned with Created=false, so the template
// runs at most once per (owner, date).
func (s *Service) GetOrCreateDispatch(ownerID model.UserID, date string) (GetOrCreateResult, error) {
	if !calendar.Valid(date) {
		return GetOrCreateResult{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	if d, err := s.store.FindDispatch(ownerID, date); err != nil {
		return GetOrCreateResult{}, fmt.Errorf("find dispatch: %w", err)
	} else if d != nil {
		return GetOrCreateResult{Dispatch: *d}, nil
	}

	d, err := s.store.CreateDispatch(ownerID, date)
	if err != nil {
		if errors.Is(err, ErrDispatchExists) {
			winner, ferr := s.store.FindDispatch(ownerID, date)
			if ferr != nil {
				return GetOrCreateResult{}, fmt.Errorf("re-read dispatch after lost race: %w", ferr)
			}
			if winner == nil {
				return GetOrCreateResult{}, fmt.Errorf("dispatch for %s/%s vanished after lost race", ownerID, date)
			}
			return GetOrCreateResult{Dispatch: *winner}, nil
		}
		return GetOrCreateResult{}, fmt.Errorf("create dispatch: %w", err)
	}

	count, err := s.materializeTemplate(d)
	if err != nil {
		return GetOrCreateResult{}, err
	}
	return GetOrCreateResult{Dispatch: d, Created: true, TemplateTaskCount: count}, nil
}

// materializeTemplate expands the owner's template note into tasks linked
// to the freshly created dispatch. A missing or broken template is a soft
// failure: zero tasks, never an error that would block the day.
func (s *Service) materializeTemplate(d model.Dispatch) (int, error) {
	note, err := s.store.FindTemplateNote(d.OwnerID, s.noteTitle)
	if err != nil {
		return 0, fmt.Errorf("find template note: %w", err)
	}
	if note == nil {
		return 0, nil
	}

	specs := template.Parse(note.Content, d.Date)
	for _, spec := range specs {
		t, err := s.store.CreateTask(d.OwnerID, spec.Title, spec.DueDate)
		if err != nil {
			return 0, fmt.Errorf("create template task: %w", err)
		}
		if err := s.store.CreateLink(d.ID, t.ID); err != nil {
			return 0, fmt.Errorf("link template task: %w", err)
		}
	}
	if len(specs) > 0 {
		s.logger.Printf("dispatch %s: materialized %d template task(s) for %s", d.ID, len(specs), d.Date)
	}
	return len(specs), nil
}

// View is a dispatch together with its linked tasks, in link order.
type View struct {
	Dispatch model.Dispatch `json:"dispatch"`
	Tasks    []model.Task   `json:"tasks"`
}

func (s *Service) GetDispatch(dispatchID model.DispatchID) (View, error) {
	d, err := s.store.GetDispatch(dispatchID)
	if err != nil {
		return View{}, err
	}
	tasks, err := s.store.TasksLinkedToDispatch(dispatchID)
	if err != nil {
		return View{}, fmt.Errorf("load linked tasks: %w", err)
	}
	return View{Dispatch: d, Tasks: tasks}, nil
}

// LinkTask attaches a task to an open dispatch. Linking an already-linked
// task is a no-op; the task must share the dispatch owner and not be
// soft-deleted.
func (s *Service) LinkTask(dispatchID model.DispatchID, taskID model.TaskID) error {
	d, err := s.store.GetDispatch(dispatchID)
	if err != nil {
		return err
	}
	if d.Finalized {
		return ErrDispatchFinalized
	}

	t, err := s.store.GetTask(taskID)
	if err != nil {
		return err
	}
	if t.Deleted() {
		return ErrTaskNotFound
	}
	if t.OwnerID != d.OwnerID {
		return ErrNotOwner
	}

	exists, err := s.store.LinkExists(dispatchID, taskID)
	if err != nil {
		return fmt.Errorf("check link: %w", err)
	}
	if exists {
		return nil
	}
	return s.store.CreateLink(dispatchID, taskID)
}

// UnlinkTask detaches a task from an open dispatch; unlinking a task that
// is not linked is a no-op.
func (s *Service) UnlinkTask(dispatchID model.DispatchID, taskID model.TaskID) error {
	d, err := s.store.GetDispatch(dispatchID)
	if err != nil {
		return err
	}
	if d.Finalized {
		return ErrDispatchFinalized
	}
	return s.store.DeleteLink(dispatchID, taskID)
}

func (s *Service) UpdateSummary(dispatchID model.DispatchID, summary string) (model.Dispatch, error) {
	d, err := s.store.GetDispatch(dispatchID)
	if err != nil {
		return model.Dispatch{}, err
	}
	if d.Finalized {
		return model.Dispatch{}, ErrDispatchFinalized
	}
	return s.store.UpdateDispatch(dispatchID, Patch{Summary: &summary})
}

type FinalizeResult struct {
	Dispatch       model.Dispatch    `json:"dispatch"`
	RolledOver     int               `json:"rolledOver"`
	NextDispatchID *model.DispatchID `json:"nextDispatchId,omitempty"`
}

// Finalize closes out a dispatch. Tasks still linked to it that are not
// done roll into the following day: the next day's dispatch is created on
// demand (running that day's template if so), and each unfinished task is
// linked there unless the next day already picked it up. Finalizing an
// already-finalized dispatch rejects; the latch transition itself is
// conditional at the store so two racing finalizers produce one rollover.
func (s *Service) Finalize(dispatchID model.DispatchID) (FinalizeResult, error) {
	d, err := s.store.GetDispatch(dispatchID)
	if err != nil {
		return FinalizeResult{}, err
	}
	if d.Finalized {
		return FinalizeResult{}, ErrDispatchFinalized
	}

	tasks, err := s.store.TasksLinkedToDispatch(dispatchID)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("load linked tasks: %w", err)
	}
	var unfinished []model.Task
	for _, t := range tasks {
		if t.Status != model.StatusDone {
			unfinished = append(unfinished, t)
		}
	}

	d, changed, err := s.store.SetFinalized(dispatchID, true)
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("finalize dispatch: %w", err)
	}
	if !changed {
		// Someone else finalized between our read and the flip.
		return FinalizeResult{}, ErrDispatchFinalized
	}

	res := FinalizeResult{Dispatch: d, RolledOver: len(unfinished)}
	if len(unfinished) == 0 {
		return res, nil
	}

	next, err := s.GetOrCreateDispatch(d.OwnerID, calendar.NextDay(d.Date))
	if err != nil {
		return FinalizeResult{}, fmt.Errorf("open next dispatch: %w", err)
	}
	for _, t := range unfinished {
		exists, err := s.store.LinkExists(next.Dispatch.ID, t.ID)
		if err != nil {
			return FinalizeResult{}, fmt.Errorf("check rollover link: %w", err)
		}
		if exists {
			continue
		}
		if err := s.store.CreateLink(next.Dispatch.ID, t.ID); err != nil {
			return FinalizeResult{}, fmt.Errorf("create rollover link: %w", err)
		}
	}
	s.logger.Printf("dispatch %s: finalized, rolled %d task(s) into %s", d.ID, len(unfinished), next.Dispatch.Date)

	nextID := next.Dispatch.ID
	res.NextDispatchID = &nextID
	return res, nil
}

type UnfinalizeResult struct {
	Dispatch         model.Dispatch `json:"dispatch"`
	HasNextDispatch  bool           `json:"hasNextDispatch"`
	NextDispatchDate string         `json:"nextDispatchDate"`
}

// Unfinalize reopens a finalized dispatch. Tasks already rolled into the
// next day stay linked there: the link table carries no provenance, so
// retracting would have to guess which links the rollover created versus
// ones the user added. Callers get the next day's existence instead so they
// can surface it.
func (s *Service) Unfinalize(dispatchID model.DispatchID) (UnfinalizeResult, error) {
	d, _, err := s.store.SetFinalized(dispatchID, false)
	if err != nil {
		return UnfinalizeResult{}, err
	}

	nextDate := calendar.NextDay(d.Date)
	next, err := s.store.FindDispatch(d.OwnerID, nextDate)
	if err != nil {
		return UnfinalizeResult{}, fmt.Errorf("find next dispatch: %w", err)
	}
	return UnfinalizeResult{
		Dispatch:         d,
		HasNextDispatch:  next != nil,
		NextDispatchDate: nextDate,
	}, nil
}

// PreviewTemplate expands template content against a date without touching
// storage. Exposed for the template-preview surface and the CLI.
func (s *Service) PreviewTemplate(content, date string) []template.Spec {
	return template.Parse(content, date)
}
