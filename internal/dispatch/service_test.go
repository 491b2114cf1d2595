package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sottey/dispatchtoo/internal/dispatch"
	"github.com/sottey/dispatchtoo/internal/model"
	"github.com/sottey/dispatchtoo/internal/store"
)

const owner = model.UserID("user_1")

func newService(t *testing.T) (*dispatch.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return dispatch.NewService(mem, nil), mem
}

func TestGetOrCreateDispatch_CreatesOnce(t *testing.T) {
	svc, _ := newService(t)

	first, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "2026-09-02", first.Dispatch.Date)
	assert.False(t, first.Dispatch.Finalized)

	second, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, 0, second.TemplateTaskCount)
	assert.Equal(t, first.Dispatch.ID, second.Dispatch.ID)
}

func TestGetOrCreateDispatch_InvalidDate(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.GetOrCreateDispatch(owner, "2026-02-30")
	assert.ErrorIs(t, err, dispatch.ErrInvalidDate)
}

func TestGetOrCreateDispatch_MaterializesTemplate(t *testing.T) {
	svc, mem := newService(t)
	mem.SaveNote(owner, dispatch.DefaultTemplateNoteTitle,
		"{{if:day=mon,wed,fri}}\n"+
			"- [ ] Standup prep\n"+
			"{{endif}}\n"+
			"- [ ] Water plants >{{date:YYYY-MM-DD}}\n")

	// 2026-09-02 is a Wednesday.
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, res.TemplateTaskCount)

	view, err := svc.GetDispatch(res.Dispatch.ID)
	require.NoError(t, err)
	require.Len(t, view.Tasks, 2)
	assert.Equal(t, "Standup prep", view.Tasks[0].Title)
	assert.Nil(t, view.Tasks[0].DueDate)
	assert.Equal(t, model.StatusOpen, view.Tasks[0].Status)
	assert.Equal(t, "Water plants", view.Tasks[1].Title)
	require.NotNil(t, view.Tasks[1].DueDate)
	assert.Equal(t, "2026-09-02", *view.Tasks[1].DueDate)

	// A Sunday gets only the unconditional line.
	sun, err := svc.GetOrCreateDispatch(owner, "2026-09-06")
	require.NoError(t, err)
	assert.Equal(t, 1, sun.TemplateTaskCount)
}

func TestGetOrCreateDispatch_MissingTemplateIsSoft(t *testing.T) {
	svc, _ := newService(t)

	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 0, res.TemplateTaskCount)
}

func TestGetOrCreateDispatch_TemplatePerOwner(t *testing.T) {
	svc, mem := newService(t)
	mem.SaveNote(owner, dispatch.DefaultTemplateNoteTitle, "- [ ] Mine\n")

	other, err := svc.GetOrCreateDispatch(model.UserID("user_2"), "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, 0, other.TemplateTaskCount)

	mine, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, 1, mine.TemplateTaskCount)
}

// interceptStore wraps a real store and lets a test stand in for a
// competing writer that sneaks in between the service's read and write.
type interceptStore struct {
	dispatch.Storage
	beforeCreateDispatch func(model.UserID, string)
	beforeSetFinalized   func(model.DispatchID)
}

func (s *interceptStore) CreateDispatch(ownerID model.UserID, date string) (model.Dispatch, error) {
	if fn := s.beforeCreateDispatch; fn != nil {
		s.beforeCreateDispatch = nil
		fn(ownerID, date)
	}
	return s.Storage.CreateDispatch(ownerID, date)
}

func (s *interceptStore) SetFinalized(id model.DispatchID, finalized bool) (model.Dispatch, bool, error) {
	if fn := s.beforeSetFinalized; fn != nil {
		s.beforeSetFinalized = nil
		fn(id)
	}
	return s.Storage.SetFinalized(id, finalized)
}

func TestGetOrCreateDispatch_LostCreationRace(t *testing.T) {
	mem := store.NewMemory()
	mem.SaveNote(owner, dispatch.DefaultTemplateNoteTitle, "- [ ] Would double up\n")

	st := &interceptStore{Storage: mem}
	st.beforeCreateDispatch = func(o model.UserID, date string) {
		// The competing request wins the day between our find and create.
		_, err := mem.CreateDispatch(o, date)
		require.NoError(t, err)
	}
	svc := dispatch.NewService(st, nil)

	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 0, res.TemplateTaskCount)

	// The loser returned the winner's row and did not materialize.
	winner, err := mem.FindDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, winner.ID, res.Dispatch.ID)
	linked, err := mem.TasksLinkedToDispatch(winner.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func TestFinalize_LostLatchRace(t *testing.T) {
	mem := store.NewMemory()
	st := &interceptStore{Storage: mem}
	svc := dispatch.NewService(st, nil)

	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	task, err := mem.CreateTask(owner, "Contested", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))

	st.beforeSetFinalized = func(id model.DispatchID) {
		// Another finalizer flips the latch between our read and the flip.
		_, changed, err := mem.SetFinalized(id, true)
		require.NoError(t, err)
		require.True(t, changed)
	}

	_, err = svc.Finalize(res.Dispatch.ID)
	assert.ErrorIs(t, err, dispatch.ErrDispatchFinalized)

	// The loser performed no rollover of its own.
	next, err := mem.FindDispatch(owner, "2026-09-03")
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestLinkTask(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Call plumber", nil)
	require.NoError(t, err)

	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))
	// Linking again is a no-op.
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))

	view, err := svc.GetDispatch(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Len(t, view.Tasks, 1)

	require.NoError(t, svc.UnlinkTask(res.Dispatch.ID, task.ID))
	// Unlinking an unlinked task is a no-op too.
	require.NoError(t, svc.UnlinkTask(res.Dispatch.ID, task.ID))

	view, err = svc.GetDispatch(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Tasks)
}

func TestLinkTask_Validation(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	err = svc.LinkTask(res.Dispatch.ID, "task_missing")
	assert.ErrorIs(t, err, dispatch.ErrTaskNotFound)

	foreign, err := mem.CreateTask("user_2", "Not yours", nil)
	require.NoError(t, err)
	err = svc.LinkTask(res.Dispatch.ID, foreign.ID)
	assert.ErrorIs(t, err, dispatch.ErrNotOwner)

	deleted, err := mem.CreateTask(owner, "Gone", nil)
	require.NoError(t, err)
	require.NoError(t, mem.SoftDeleteTask(deleted.ID))
	err = svc.LinkTask(res.Dispatch.ID, deleted.ID)
	assert.ErrorIs(t, err, dispatch.ErrTaskNotFound)

	err = svc.LinkTask("disp_missing", "task_missing")
	assert.ErrorIs(t, err, dispatch.ErrDispatchNotFound)
}

func TestUpdateSummary(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	d, err := svc.UpdateSummary(res.Dispatch.ID, "got through the inbox")
	require.NoError(t, err)
	assert.Equal(t, "got through the inbox", d.Summary)
}

func TestFinalize_RollsOverUnfinished(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	done, err := mem.CreateTask(owner, "Done today", nil)
	require.NoError(t, err)
	open, err := mem.CreateTask(owner, "Still open", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, done.ID))
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, open.ID))
	_, err = mem.SetTaskStatus(done.ID, model.StatusDone)
	require.NoError(t, err)

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.True(t, fin.Dispatch.Finalized)
	assert.Equal(t, 1, fin.RolledOver)
	require.NotNil(t, fin.NextDispatchID)

	next, err := svc.GetDispatch(*fin.NextDispatchID)
	require.NoError(t, err)
	assert.Equal(t, "2026-09-03", next.Dispatch.Date)
	require.Len(t, next.Tasks, 1)
	assert.Equal(t, open.ID, next.Tasks[0].ID)

	// Second finalize rejects.
	_, err = svc.Finalize(res.Dispatch.ID)
	assert.ErrorIs(t, err, dispatch.ErrDispatchFinalized)
}

func TestFinalize_NothingUnfinished(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Wrapped up", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))
	_, err = mem.SetTaskStatus(task.ID, model.StatusDone)
	require.NoError(t, err)

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fin.RolledOver)
	assert.Nil(t, fin.NextDispatchID)

	// No next dispatch was created.
	next, err := svc.GetOrCreateDispatch(owner, "2026-09-03")
	require.NoError(t, err)
	assert.True(t, next.Created)
}

func TestFinalize_InProgressRollsOver(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Half way", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))
	_, err = mem.SetTaskStatus(task.ID, model.StatusInProgress)
	require.NoError(t, err)

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fin.RolledOver)
}

func TestFinalize_SoftDeletedTaskIgnored(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Deleted before close", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))
	require.NoError(t, mem.SoftDeleteTask(task.ID))

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, fin.RolledOver)
	assert.Nil(t, fin.NextDispatchID)
}

func TestFinalize_RolloverMaterializesNextDay(t *testing.T) {
	svc, mem := newService(t)
	mem.SaveNote(owner, dispatch.DefaultTemplateNoteTitle, "- [ ] Every day\n")

	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TemplateTaskCount)

	// The materialized task stays open, so finalizing rolls it while the
	// next day also runs its own template.
	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fin.RolledOver)
	require.NotNil(t, fin.NextDispatchID)

	next, err := svc.GetDispatch(*fin.NextDispatchID)
	require.NoError(t, err)
	// One from the next day's template, one rolled over.
	assert.Len(t, next.Tasks, 2)
}

func TestFinalize_RolloverLinkIdempotent(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Already on tomorrow", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))

	// The user linked the same task to tomorrow ahead of time.
	tomorrow, err := svc.GetOrCreateDispatch(owner, "2026-09-03")
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(tomorrow.Dispatch.ID, task.ID))

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fin.RolledOver)

	view, err := svc.GetDispatch(tomorrow.Dispatch.ID)
	require.NoError(t, err)
	assert.Len(t, view.Tasks, 1)
}

func TestFinalizedDispatchRejectsMutation(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	task, err := mem.CreateTask(owner, "Late arrival", nil)
	require.NoError(t, err)

	_, err = svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)

	err = svc.LinkTask(res.Dispatch.ID, task.ID)
	assert.ErrorIs(t, err, dispatch.ErrDispatchFinalized)

	err = svc.UnlinkTask(res.Dispatch.ID, task.ID)
	assert.ErrorIs(t, err, dispatch.ErrDispatchFinalized)

	_, err = svc.UpdateSummary(res.Dispatch.ID, "too late")
	assert.ErrorIs(t, err, dispatch.ErrDispatchFinalized)
}

func TestUnfinalize(t *testing.T) {
	svc, mem := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)

	task, err := mem.CreateTask(owner, "Carries over", nil)
	require.NoError(t, err)
	require.NoError(t, svc.LinkTask(res.Dispatch.ID, task.ID))

	fin, err := svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)
	require.NotNil(t, fin.NextDispatchID)

	un, err := svc.Unfinalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.False(t, un.Dispatch.Finalized)
	assert.True(t, un.HasNextDispatch)
	assert.Equal(t, "2026-09-03", un.NextDispatchDate)

	// The rolled-over link is left in place.
	next, err := svc.GetDispatch(*fin.NextDispatchID)
	require.NoError(t, err)
	require.Len(t, next.Tasks, 1)
	assert.Equal(t, task.ID, next.Tasks[0].ID)

	// The reopened dispatch accepts mutation again.
	_, err = svc.UpdateSummary(res.Dispatch.ID, "reopened")
	require.NoError(t, err)
}

func TestUnfinalize_NoNextDispatch(t *testing.T) {
	svc, _ := newService(t)
	res, err := svc.GetOrCreateDispatch(owner, "2026-09-02")
	require.NoError(t, err)
	_, err = svc.Finalize(res.Dispatch.ID)
	require.NoError(t, err)

	un, err := svc.Unfinalize(res.Dispatch.ID)
	require.NoError(t, err)
	assert.False(t, un.HasNextDispatch)
	assert.Equal(t, "2026-09-03", un.NextDispatchDate)
}

func TestUnfinalize_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Unfinalize("disp_missing")
	assert.ErrorIs(t, err, dispatch.ErrDispatchNotFound)
}
