package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/opcal/pkg/audit"
	"github.com/harrisonrobin/opcal/pkg/config"
	"github.com/harrisonrobin/opcal/pkg/google"
	"github.com/harrisonrobin/opcal/pkg/model"
	"github.com/harrisonrobin/opcal/pkg/openproject"
	"github.com/harrisonrobin/opcal/pkg/util"
	log "github.com/sirupsen/logrus"
)

// TaskSource returns the current work package snapshot as raw records.
type TaskSource interface {
	WorkPackages(ctx context.Context) ([]json.RawMessage, error)
}

// Options are the per-deployment knobs of a pass.
type Options struct {
	DueHourField string
	TimeMin      time.Time
	Location     *time.Location
	DryRun       bool
}

// OptionsFromConfig derives pass options from a validated config.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	timeMin, err := cfg.TimeMin()
	if err != nil {
		return Options{}, err
	}
	return Options{DueHourField: cfg.DueHourField, TimeMin: timeMin, Location: loc}, nil
}

// Outcome is what one pass decided and did.
type Outcome struct {
	PassID      string
	StartedAt   time.Time
	DryRun      bool
	Plan        Plan
	TaskErrors  []model.ParseError
	OutOfWindow []int
	EventErrors []model.ParseError
	Results     map[Category][]ActionResult
}

// Errors returns the failures of one category as "<id>: <error>" strings.
func (o *Outcome) Errors(c Category) []string {
	return Failures(o.Results[c])
}

// Failed counts failed actions across categories.
func (o *Outcome) Failed() int {
	n := 0
	for _, c := range Categories {
		n += len(o.Errors(c))
	}
	return n
}

// Report flattens the outcome into audit rows.
func (o *Outcome) Report() audit.Report {
	return audit.Report{
		PassID: o.PassID,
		Time:   o.StartedAt,
		Actions: []audit.Row{
			{Label: string(Create), Items: itoa(o.Plan.ToCreate)},
			{Label: string(Delete), Items: itoa(o.Plan.ToDelete)},
			{Label: string(Update), Items: itoa(o.Plan.MayUpdate)},
			{Label: "updated", Items: Succeeded(o.Results[Update])},
			{Label: "out_of_window", Items: itoa(o.OutOfWindow)},
		},
		Errors: []audit.Row{
			{Label: string(Create) + "_errors", Items: o.Errors(Create)},
			{Label: string(Delete) + "_errors", Items: o.Errors(Delete)},
			{Label: string(Update) + "_errors", Items: o.Errors(Update)},
			{Label: "task_parse_errors", Items: parseErrors(o.TaskErrors)},
			{Label: "event_parse_errors", Items: parseErrors(o.EventErrors)},
		},
	}
}

// Syncer runs reconciliation passes. It holds no state from one pass to the next.
type Syncer struct {
	Tasks    TaskSource
	Calendar Calendar
	Recorder *audit.Recorder
	Options  Options
	Log      log.FieldLogger

	now func() time.Time
}

func NewSyncer(opts Options, tasks TaskSource, cal Calendar, rec *audit.Recorder) *Syncer {
	return &Syncer{
		Tasks:    tasks,
		Calendar: cal,
		Recorder: rec,
		Options:  opts,
		Log:      log.StandardLogger(),
		now:      time.Now,
	}
}

// Run performs one full pass. Failing to fetch either snapshot or to write the
// audit log is returned as an error; failing individual records and actions
// are reported in the outcome.
func (s *Syncer) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{
		PassID:    uuid.New().String(),
		StartedAt: s.clock(),
		DryRun:    s.Options.DryRun,
	}
	logger := s.logger().WithField("pass", out.PassID)

	records, err := s.Tasks.WorkPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work packages: %w", err)
	}
	tasks, taskErrs := openproject.ParseWorkPackages(records, s.Options.DueHourField)
	out.TaskErrors = taskErrs
	out.OutOfWindow = dropBeforeWindow(tasks, s.Options.TimeMin, s.Options.Location)
	if len(out.OutOfWindow) > 0 {
		logger.WithField("ids", out.OutOfWindow).Info("skipping work packages that end before the calendar window")
	}

	items, err := s.Calendar.ListEvents(ctx, s.Options.TimeMin)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar events: %w", err)
	}
	events, eventErrs := google.ParseEvents(items)
	out.EventErrors = eventErrs

	for _, pe := range taskErrs {
		logger.WithError(pe.Err).Warn("skipping work package")
	}
	for _, pe := range eventErrs {
		logger.WithError(pe.Err).Warn("skipping calendar event")
	}

	out.Plan = Reconcile(tasks, events)
	logger.WithFields(log.Fields{
		"tasks":      len(tasks),
		"events":     len(events),
		"to_create":  len(out.Plan.ToCreate),
		"to_delete":  len(out.Plan.ToDelete),
		"may_update": len(out.Plan.MayUpdate),
		"changed":    len(out.Plan.Changed),
	}).Info("reconciliation plan")

	if s.Options.DryRun {
		return out, nil
	}

	x := &Executor{Calendar: s.Calendar, Location: s.Options.Location, Log: logger}
	out.Results = x.Execute(ctx, out.Plan, tasks, events)
	if n := out.Failed(); n > 0 {
		logger.WithField("failed", n).Warn("some calendar actions failed")
	}

	if err := s.Recorder.Record(ctx, out.Report()); err != nil {
		return out, fmt.Errorf("failed to record outcome: %w", err)
	}
	return out, nil
}

// Loop runs a pass immediately and then every interval until ctx is done.
// A failed pass is logged; the next one starts again from fresh snapshots.
func (s *Syncer) Loop(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := s.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger().WithError(err).Error("synchronization pass failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Syncer) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func (s *Syncer) logger() log.FieldLogger {
	if s.Log == nil {
		return log.StandardLogger()
	}
	return s.Log
}

// dropBeforeWindow removes tasks whose event would end at or before timeMin.
// The calendar listing never returns such events, so keeping the tasks would
// insert a duplicate on every pass. Tasks whose time cannot be computed stay
// so the executor reports them.
func dropBeforeWindow(tasks map[int]model.Task, timeMin time.Time, loc *time.Location) []int {
	if timeMin.IsZero() {
		return nil
	}
	var dropped []int
	for id, task := range tasks {
		start, err := util.CombineDateAndHour(task.DueDate, task.DueHour, loc)
		if err != nil {
			continue
		}
		if !start.Add(util.EventDuration).After(timeMin) {
			dropped = append(dropped, id)
			delete(tasks, id)
		}
	}
	sort.Ints(dropped)
	return dropped
}

func itoa(ids []int) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.Itoa(id)
	}
	return out
}

func parseErrors(errs []model.ParseError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
