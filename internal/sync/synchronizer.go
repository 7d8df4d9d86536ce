// Package sync mirrors local LMS entities to the proctoring service. Each
// synchronizer is a guarded lookup-or-create that logs its failures and
// reports an Outcome instead of returning an error.
package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"proctor-sync/internal/domain"
	"proctor-sync/internal/examity"
	"proctor-sync/internal/httpx"
	"proctor-sync/internal/lms"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/metrics"
)

// ExamDuration is the fixed exam length in minutes.
const ExamDuration = 135

type Synchronizer struct {
	Client ClientFunc
	Tokens TokenSource
	LMS    lms.Source
	SiteID int64
	Window ExamWindow
	Now    func() time.Time

	Metrics metrics.Recorder
}

func (s *Synchronizer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// session resolves the client and token every remote call needs.
func (s *Synchronizer) session(ctx context.Context) (API, string, error) {
	if s.Client == nil {
		return nil, "", fmt.Errorf("%w: api client", ErrConfigurationMissing)
	}
	api, err := s.Client()
	if err != nil || api == nil {
		return nil, "", fmt.Errorf("%w: api client: %v", ErrConfigurationMissing, err)
	}
	if s.Tokens == nil {
		return nil, "", fmt.Errorf("%w: token", ErrConfigurationMissing)
	}
	tok, ok := s.Tokens.Get(ctx)
	if !ok {
		if c, isC := s.Tokens.(configuredSource); isC && c.Configured() {
			return nil, "", ErrTokenUnavailable
		}
		return nil, "", fmt.Errorf("%w: token", ErrConfigurationMissing)
	}
	return api, tok, nil
}

func (s *Synchronizer) finish(ctx context.Context, r Result) Result {
	log := logx.FromContext(ctx).With("entity", r.Entity, "id", r.ID, "outcome", string(r.Outcome))
	switch r.Outcome {
	case Failed:
		log.Error("sync failed", "error", r.Err)
	case Skipped:
		log.Debug("sync skipped", "reason", errString(r.Err))
	default:
		log.Info("synced")
	}
	if s.Metrics != nil {
		s.Metrics.RecordSync(r.Entity, string(r.Outcome))
	}
	return r
}

func (s *Synchronizer) skip(ctx context.Context, entity, id string, err error) Result {
	return s.finish(ctx, Result{Entity: entity, ID: id, Outcome: Skipped, Err: err})
}

func (s *Synchronizer) fail(ctx context.Context, entity, id string, err error) Result {
	return s.finish(ctx, Result{Entity: entity, ID: id, Outcome: Failed, Err: err})
}

// created maps a create call's error to an outcome. The API answers 409 for
// entities it already has.
func (s *Synchronizer) created(ctx context.Context, entity, id string, err error) Result {
	switch {
	case err == nil:
		return s.finish(ctx, Result{Entity: entity, ID: id, Outcome: Created})
	case httpx.StatusCode(err) == http.StatusConflict:
		return s.finish(ctx, Result{Entity: entity, ID: id, Outcome: Exists})
	default:
		return s.fail(ctx, entity, id, err)
	}
}

// SyncUser looks the user up remotely and creates it only when the service
// reports it missing. Existing users are never updated.
func (s *Synchronizer) SyncUser(ctx context.Context, u domain.User) Result {
	id := u.Email
	if err := validateUser(u); err != nil {
		return s.skip(ctx, EntityUser, id, err)
	}
	api, tok, err := s.session(ctx)
	if err != nil {
		return s.skip(ctx, EntityUser, id, err)
	}

	_, err = api.GetUserInfo(ctx, tok, u.Email)
	switch {
	case err == nil:
		return s.finish(ctx, Result{Entity: EntityUser, ID: id, Outcome: Exists})
	case !errors.Is(err, examity.ErrUserNotFound):
		return s.fail(ctx, EntityUser, id, err)
	}

	err = api.CreateUser(ctx, tok, examity.User{
		UserID:       u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		EmailAddress: u.Email,
	})
	return s.created(ctx, EntityUser, id, err)
}

// SyncCourse creates the remote course for post, owned by the post author.
func (s *Synchronizer) SyncCourse(ctx context.Context, post domain.Post) Result {
	courseID, err := s.LMS.CourseIDFor(ctx, post)
	if err != nil {
		return s.fail(ctx, EntityCourse, BuildID(s.SiteID, post.ID), err)
	}
	id := BuildID(s.SiteID, courseID)
	if id == "" {
		return s.skip(ctx, EntityCourse, "", fmt.Errorf("%w: post %d has no course", ErrValidationFailed, post.ID))
	}

	course := post
	if courseID != post.ID {
		if course, err = s.LMS.Post(ctx, courseID); err != nil {
			return s.fail(ctx, EntityCourse, id, err)
		}
	}

	var instructor domain.User
	if course.AuthorID > 0 {
		instructor, err = s.LMS.User(ctx, course.AuthorID)
		if err != nil && !errors.Is(err, lms.ErrNotFound) {
			return s.fail(ctx, EntityCourse, id, err)
		}
	}
	if err := required("course name", course.Title,
		"instructor email", instructor.Email,
		"instructor first name", instructor.FirstName,
		"instructor last name", instructor.LastName); err != nil {
		return s.skip(ctx, EntityCourse, id, err)
	}

	api, tok, err := s.session(ctx)
	if err != nil {
		return s.skip(ctx, EntityCourse, id, err)
	}
	err = api.CreateCourse(ctx, tok, examity.Course{
		CourseID:     id,
		CourseName:   course.Title,
		UserID:       instructor.Email,
		FirstName:    instructor.FirstName,
		LastName:     instructor.LastName,
		EmailAddress: instructor.Email,
	})
	return s.created(ctx, EntityCourse, id, err)
}

// SyncEnrollment enrolls u in the course when the LMS grants access.
func (s *Synchronizer) SyncEnrollment(ctx context.Context, courseID int64, u domain.User) Result {
	cid := BuildID(s.SiteID, courseID)
	id := cid + "/" + u.Email
	if cid == "" {
		return s.skip(ctx, EntityEnrollment, id, fmt.Errorf("%w: course id is empty", ErrValidationFailed))
	}
	ok, err := s.LMS.HasAccess(ctx, courseID, u.ID)
	if err != nil {
		return s.fail(ctx, EntityEnrollment, id, err)
	}
	if !ok {
		return s.skip(ctx, EntityEnrollment, id, fmt.Errorf("%w: user %d has no access", ErrValidationFailed, u.ID))
	}
	if err := validateUser(u); err != nil {
		return s.skip(ctx, EntityEnrollment, id, err)
	}

	api, tok, err := s.session(ctx)
	if err != nil {
		return s.skip(ctx, EntityEnrollment, id, err)
	}
	err = api.EnrollUser(ctx, tok, examity.Enrollment{CourseID: cid, UserID: u.Email})
	return s.created(ctx, EntityEnrollment, id, err)
}

// SyncExam creates the remote exam for a quiz the author opted in.
func (s *Synchronizer) SyncExam(ctx context.Context, quiz domain.Post, courseID int64) Result {
	id := BuildID(s.SiteID, quiz.ID)
	on, err := s.LMS.ProvisionFlag(ctx, quiz.ID)
	if err != nil {
		return s.fail(ctx, EntityExam, id, err)
	}
	if !on {
		return s.skip(ctx, EntityExam, id, fmt.Errorf("%w: provisioning not enabled", ErrValidationFailed))
	}
	cid := BuildID(s.SiteID, courseID)

	link, err := s.LMS.Permalink(ctx, quiz)
	if err != nil && !errors.Is(err, lms.ErrNotFound) {
		return s.fail(ctx, EntityExam, id, err)
	}
	examURL := ResolvePermalink(link)
	name := ExamName(quiz.Title)

	if err := required("exam id", id, "course id", cid, "exam name", name); err != nil {
		return s.skip(ctx, EntityExam, id, err)
	}
	if !validURL(examURL) {
		return s.skip(ctx, EntityExam, id, fmt.Errorf("%w: invalid exam url %q", ErrValidationFailed, examURL))
	}

	api, tok, err := s.session(ctx)
	if err != nil {
		return s.skip(ctx, EntityExam, id, err)
	}
	start, end := s.Window.Bounds(s.now())
	err = api.CreateExam(ctx, tok, examity.Exam{
		CourseID:      cid,
		ExamID:        id,
		ExamName:      name,
		ExamURL:       examURL,
		ExamDuration:  ExamDuration,
		ExamStartDate: start.Format(time.RFC3339),
		ExamEndDate:   end.Format(time.RFC3339),
	})
	return s.created(ctx, EntityExam, id, err)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
