// Package reconcile compares a work package snapshot with the calendar,
// decides which events to create, delete or replace, and carries out the
// decision one event at a time.
package reconcile

import (
	"sort"

	"github.com/harrisonrobin/opcal/pkg/model"
)

// Plan partitions the ids seen on either side.
//
// ToCreate and ToDelete are the two halves of the symmetric difference;
// MayUpdate is the intersection and Changed the subset of it whose
// fingerprint differs. All slices are sorted ascending.
type Plan struct {
	ToCreate  []int
	ToDelete  []int
	MayUpdate []int
	Changed   []int
}

// Reconcile builds the plan for one pass. It never looks at anything but the
// ids and, for ids on both sides, the UpdatedAt fingerprints.
func Reconcile(tasks map[int]model.Task, events map[int]model.Event) Plan {
	var p Plan
	for id, task := range tasks {
		ev, ok := events[id]
		if !ok {
			p.ToCreate = append(p.ToCreate, id)
			continue
		}
		p.MayUpdate = append(p.MayUpdate, id)
		if NeedsUpdate(task, ev) {
			p.Changed = append(p.Changed, id)
		}
	}
	for id := range events {
		if _, ok := tasks[id]; !ok {
			p.ToDelete = append(p.ToDelete, id)
		}
	}
	sort.Ints(p.ToCreate)
	sort.Ints(p.ToDelete)
	sort.Ints(p.MayUpdate)
	sort.Ints(p.Changed)
	return p
}

// NeedsUpdate reports whether the event was written from another version of
// the task. The fingerprints are compared as opaque strings.
func NeedsUpdate(task model.Task, ev model.Event) bool {
	return task.UpdatedAt != ev.UpdatedAt
}
