package reconcile

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/harrisonrobin/opcal/pkg/model"
	"github.com/harrisonrobin/opcal/pkg/util"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
)

// Calendar is the subset of the calendar service a pass needs.
type Calendar interface {
	ListEvents(ctx context.Context, timeMin time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Category names an action kind. The values double as audit labels.
type Category string

const (
	Create Category = "to_create"
	Delete Category = "to_delete"
	Update Category = "may_update"
)

// Categories lists the action kinds in execution order.
var Categories = []Category{Create, Delete, Update}

// ActionResult is the outcome of one calendar call. A nil Err means success.
type ActionResult struct {
	Category Category
	ID       int
	EventID  string
	Err      error
}

func (r ActionResult) String() string {
	if r.Err == nil {
		return fmt.Sprintf("%d: ok", r.ID)
	}
	return fmt.Sprintf("%d: %v", r.ID, r.Err)
}

// Executor applies a plan to the calendar.
type Executor struct {
	Calendar Calendar
	Location *time.Location
	Log      log.FieldLogger
}

// Execute runs creates, then deletes, then updates of changed ids. A failing
// call is recorded against its id and never stops the batch.
func (x *Executor) Execute(ctx context.Context, plan Plan, tasks map[int]model.Task, events map[int]model.Event) map[Category][]ActionResult {
	results := make(map[Category][]ActionResult, len(Categories))

	for _, id := range plan.ToCreate {
		task := tasks[id]
		results[Create] = append(results[Create], x.create(ctx, &task))
	}
	for _, id := range plan.ToDelete {
		results[Delete] = append(results[Delete], x.delete(ctx, events[id]))
	}
	for _, id := range plan.Changed {
		task := tasks[id]
		results[Update] = append(results[Update], x.update(ctx, &task, events[id]))
	}
	return results
}

func (x *Executor) create(ctx context.Context, task *model.Task) ActionResult {
	res := ActionResult{Category: Create, ID: task.ID}
	if res.Err = ctx.Err(); res.Err != nil {
		return res
	}
	body, err := util.ConvertTaskToCalendarEvent(task, x.Location)
	if err != nil {
		res.Err = err
		return res
	}
	created, err := x.Calendar.InsertEvent(ctx, body)
	if err != nil {
		res.Err = fmt.Errorf("insert event: %w", err)
		x.logger().WithField("wp_id", task.ID).WithError(err).Warn("could not create event")
		return res
	}
	res.EventID = created.Id
	x.logger().WithFields(log.Fields{"wp_id": task.ID, "link": created.HtmlLink}).Infof("Event %s created", body.Summary)
	return res
}

func (x *Executor) delete(ctx context.Context, ev model.Event) ActionResult {
	res := ActionResult{Category: Delete, ID: ev.WPID, EventID: ev.EventID}
	if res.Err = ctx.Err(); res.Err != nil {
		return res
	}
	if err := x.Calendar.DeleteEvent(ctx, ev.EventID); err != nil {
		res.Err = fmt.Errorf("delete event %s: %w", ev.EventID, err)
		x.logger().WithField("wp_id", ev.WPID).WithError(err).Warn("could not delete event")
		return res
	}
	x.logger().WithField("wp_id", ev.WPID).Infof("Work package %s has been deleted", ev.Subject)
	return res
}

func (x *Executor) update(ctx context.Context, task *model.Task, ev model.Event) ActionResult {
	res := ActionResult{Category: Update, ID: task.ID, EventID: ev.EventID}
	if res.Err = ctx.Err(); res.Err != nil {
		return res
	}
	body, err := util.ConvertTaskToCalendarEvent(task, x.Location)
	if err != nil {
		res.Err = err
		return res
	}
	if _, err := x.Calendar.UpdateEvent(ctx, ev.EventID, body); err != nil {
		res.Err = fmt.Errorf("update event %s: %w", ev.EventID, err)
		x.logger().WithField("wp_id", task.ID).WithError(err).Warn("could not update event")
		return res
	}
	x.logger().WithField("wp_id", task.ID).Infof("Event %s has been updated", body.Summary)
	return res
}

func (x *Executor) logger() log.FieldLogger {
	if x.Log == nil {
		return log.StandardLogger()
	}
	return x.Log
}

// Failures returns "<id>: <error>" for every failed result.
func Failures(results []ActionResult) []string {
	var out []string
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r.String())
		}
	}
	return out
}

// Succeeded returns the ids whose action went through.
func Succeeded(results []ActionResult) []string {
	var out []string
	for _, r := range results {
		if r.Err == nil {
			out = append(out, strconv.Itoa(r.ID))
		}
	}
	return out
}
