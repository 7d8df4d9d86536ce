// Package lms is the read-only view of the learning management system that
// provisioning walks: courses, quizzes, enrollments and the accounts behind
// them.
package lms

import (
	"context"
	"errors"

	"proctor-sync/internal/domain"
)

var ErrNotFound = errors.New("lms: not found")

// Source answers the questions provisioning asks about local content.
type Source interface {
	// Courses lists every course in the site.
	Courses(ctx context.Context) ([]domain.Post, error)
	Post(ctx context.Context, id int64) (domain.Post, error)
	User(ctx context.Context, id int64) (domain.User, error)
	// CourseIDFor returns the course a post belongs to. For a course that is
	// its own id; for a quiz it is the associated course, or 0 when none.
	CourseIDFor(ctx context.Context, post domain.Post) (int64, error)
	HasAccess(ctx context.Context, courseID, userID int64) (bool, error)
	// CourseQuizzes lists quizzes attached to the course.
	CourseQuizzes(ctx context.Context, courseID int64) ([]domain.Post, error)
	// GlobalQuizzes lists quizzes not attached to any course.
	GlobalQuizzes(ctx context.Context) ([]domain.Post, error)
	EnrolledUsers(ctx context.Context, courseID int64) ([]domain.User, error)
	Permalink(ctx context.Context, post domain.Post) (domain.Permalink, error)
	// ProvisionFlag reports whether the author opted the post in to proctoring.
	ProvisionFlag(ctx context.Context, postID int64) (bool, error)
}

// Quizzes returns the course's own quizzes followed by the global ones.
func Quizzes(ctx context.Context, src Source, courseID int64) ([]domain.Post, error) {
	own, err := src.CourseQuizzes(ctx, courseID)
	if err != nil {
		return nil, err
	}
	global, err := src.GlobalQuizzes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Post, 0, len(own)+len(global))
	seen := make(map[int64]bool, len(own)+len(global))
	for _, q := range append(own, global...) {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
	}
	return out, nil
}
