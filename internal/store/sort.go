package store

import (
	"sort"

	"github.com/sottey/dispatchtoo/internal/model"
)

// sortTasks orders by creation sequence, so linked-task listings come back
// in materialization order even when several tasks share a clock tick.
func sortTasks(tasks []model.Task, seq map[model.TaskID]int) {
	sort.Slice(tasks, func(i, j int) bool {
		return seq[tasks[i].ID] < seq[tasks[j].ID]
	})
}
