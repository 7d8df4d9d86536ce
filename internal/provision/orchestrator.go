// Package provision walks LMS content in dependency order and drives the
// entity synchronizers: courses before the exams and enrollments that
// reference them, users before their enrollments.
package provision

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"proctor-sync/internal/concurrency"
	"proctor-sync/internal/domain"
	"proctor-sync/internal/lms"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/metrics"
	"proctor-sync/internal/report"
	psync "proctor-sync/internal/sync"
)

// Syncer is satisfied by *sync.Synchronizer.
type Syncer interface {
	SyncUser(ctx context.Context, u domain.User) psync.Result
	SyncCourse(ctx context.Context, post domain.Post) psync.Result
	SyncEnrollment(ctx context.Context, courseID int64, u domain.User) psync.Result
	SyncExam(ctx context.Context, quiz domain.Post, courseID int64) psync.Result
}

var _ Syncer = (*psync.Synchronizer)(nil)

type Orchestrator struct {
	Sync Syncer
	LMS  lms.Source
	// Workers > 1 provisions that many courses at once during a batch.
	Workers int

	Metrics metrics.Recorder
	Report  *report.Writer // optional
	Now     func() time.Time
}

// Run summarizes one provisioning pass.
type Run struct {
	ID       string
	Started  time.Time
	Finished time.Time
	// Courses counts courses that had at least one quiz.
	Courses int
	Results []psync.Result
	Errors  []error
}

func (r *Run) Count(o psync.Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func NewRunID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// collector gathers results from concurrent course workers.
type collector struct {
	mu      sync.Mutex
	results []psync.Result
}

func (c *collector) add(r psync.Result) psync.Result {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	return r
}

// ProvisionObject handles a viewer opening a course or quiz. Quizzes sync
// their exam only; courses sync the viewer, the course, the enrollment and
// every associated exam. Nothing happens without a course or without access.
func (o *Orchestrator) ProvisionObject(ctx context.Context, postID, viewerID int64) []psync.Result {
	log := logx.FromContext(ctx).With("post_id", postID, "viewer_id", viewerID)

	post, err := o.LMS.Post(ctx, postID)
	if err != nil {
		if !errors.Is(err, lms.ErrNotFound) {
			log.Error("provision: load post", "error", err)
		}
		return nil
	}
	if !post.IsCourse() && !post.IsQuiz() {
		return nil
	}

	courseID, err := o.LMS.CourseIDFor(ctx, post)
	if err != nil {
		log.Error("provision: resolve course", "error", err)
		return nil
	}
	if courseID == 0 {
		log.Debug("provision: no course association")
		return nil
	}
	ok, err := o.LMS.HasAccess(ctx, courseID, viewerID)
	if err != nil {
		log.Error("provision: access check", "error", err)
		return nil
	}
	if !ok {
		log.Debug("provision: viewer has no access", "course_id", courseID)
		return nil
	}

	c := &collector{}
	if post.IsQuiz() {
		c.add(o.Sync.SyncExam(ctx, post, courseID))
		return c.results
	}

	viewer, err := o.LMS.User(ctx, viewerID)
	if err != nil {
		log.Error("provision: load viewer", "error", err)
		return nil
	}
	user := c.add(o.Sync.SyncUser(ctx, viewer))
	course := c.add(o.Sync.SyncCourse(ctx, post))
	if !course.OK() {
		return c.results
	}
	if user.OK() {
		c.add(o.Sync.SyncEnrollment(ctx, courseID, viewer))
	}

	quizzes, err := lms.Quizzes(ctx, o.LMS, courseID)
	if err != nil {
		log.Error("provision: list quizzes", "course_id", courseID, "error", err)
		return c.results
	}
	for _, q := range quizzes {
		c.add(o.Sync.SyncExam(ctx, q, courseID))
	}
	return c.results
}

// ProvisionAll walks every course. Courses without quizzes are left alone;
// for the rest the course is created, then its exams, then its enrolled
// users and their enrollments.
func (o *Orchestrator) ProvisionAll(ctx context.Context) *Run {
	run := &Run{Started: o.now()}
	run.ID = NewRunID(run.Started)
	ctx = logx.WithRunID(ctx, run.ID)
	log := logx.FromContext(ctx)
	log.Info("provision: batch started")

	courses, err := o.LMS.Courses(ctx)
	if err != nil {
		run.Errors = append(run.Errors, fmt.Errorf("list courses: %w", err))
		log.Error("provision: list courses", "error", err)
		return o.finish(ctx, run, nil)
	}

	c := &collector{}
	var (
		mu      sync.Mutex
		visited int
	)
	errs := concurrency.ForEach(ctx, courses, concurrency.Options{MaxWorkers: o.Workers},
		func(ctx context.Context, _ int, course domain.Post) error {
			did, err := o.provisionCourse(ctx, c, course)
			if did {
				mu.Lock()
				visited++
				mu.Unlock()
			}
			return err
		})
	run.Courses = visited
	run.Errors = append(run.Errors, errs...)
	return o.finish(ctx, run, c.results)
}

func (o *Orchestrator) provisionCourse(ctx context.Context, c *collector, course domain.Post) (bool, error) {
	log := logx.FromContext(ctx).With("course_id", course.ID)

	quizzes, err := lms.Quizzes(ctx, o.LMS, course.ID)
	if err != nil {
		log.Error("provision: list quizzes", "error", err)
		return false, fmt.Errorf("course %d quizzes: %w", course.ID, err)
	}
	if len(quizzes) == 0 {
		log.Debug("provision: course has no quizzes")
		return false, nil
	}
	users, err := o.LMS.EnrolledUsers(ctx, course.ID)
	if err != nil {
		log.Error("provision: list enrolled users", "error", err)
		return true, fmt.Errorf("course %d users: %w", course.ID, err)
	}

	if r := c.add(o.Sync.SyncCourse(ctx, course)); !r.OK() {
		return true, nil
	}
	for _, q := range quizzes {
		c.add(o.Sync.SyncExam(ctx, q, course.ID))
	}
	ready := make([]domain.User, 0, len(users))
	for _, u := range users {
		if c.add(o.Sync.SyncUser(ctx, u)).OK() {
			ready = append(ready, u)
		}
	}
	for _, u := range ready {
		c.add(o.Sync.SyncEnrollment(ctx, course.ID, u))
	}
	return true, nil
}

func (o *Orchestrator) finish(ctx context.Context, run *Run, results []psync.Result) *Run {
	run.Finished = o.now()
	run.Results = results
	if o.Metrics != nil {
		o.Metrics.RecordBatch(run.Finished.Sub(run.Started), run.Courses)
	}

	logx.FromContext(ctx).Info("provision: batch finished",
		"courses", run.Courses,
		"created", run.Count(psync.Created),
		"exists", run.Count(psync.Exists),
		"skipped", run.Count(psync.Skipped),
		"failed", run.Count(psync.Failed),
		"errors", len(run.Errors),
		"duration", run.Finished.Sub(run.Started).String())

	if o.Report.Enabled() {
		rows := make([]report.Row, len(results))
		for i, r := range results {
			rows[i] = report.Row{RunID: run.ID, At: run.Finished, Result: r}
		}
		if _, err := o.Report.Write(ctx, run.ID, rows); err != nil {
			logx.FromContext(ctx).Error("provision: write report", "error", err)
		}
	}
	return run
}
