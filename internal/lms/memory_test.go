package lms

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/domain"
)

func seed() *Catalog {
	c := NewCatalog()
	c.AddUser(domain.User{ID: 1, Email: "a@x.edu", FirstName: "Ann", LastName: "Lee"})
	c.AddUser(domain.User{ID: 2, Email: "b@x.edu", FirstName: "Bo", LastName: "Kim"})
	c.AddCourse(domain.Post{ID: 7, Title: "Algebra I"})
	c.AddCourse(domain.Post{ID: 8, Title: "Open Course"})
	c.AddQuiz(domain.Post{ID: 42, Title: "Midterm"}, 7, true)
	c.AddQuiz(domain.Post{ID: 50, Title: "Placement"}, 0, false)
	c.Enroll(7, 1, 2, 2)
	c.SetOpen(8, true)
	return c
}

func TestCatalogQuizzes(t *testing.T) {
	ctx := context.Background()
	c := seed()

	qs, err := Quizzes(ctx, c, 7)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, int64(42), qs[0].ID)
	assert.Equal(t, int64(50), qs[1].ID)

	qs, err = Quizzes(ctx, c, 8)
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, int64(50), qs[0].ID)
}

func TestCatalogAccess(t *testing.T) {
	ctx := context.Background()
	c := seed()

	ok, _ := c.HasAccess(ctx, 7, 1)
	assert.True(t, ok)
	ok, _ = c.HasAccess(ctx, 7, 3)
	assert.False(t, ok)
	ok, _ = c.HasAccess(ctx, 8, 3)
	assert.True(t, ok, "open course")
	ok, _ = c.HasAccess(ctx, 0, 1)
	assert.False(t, ok)

	users, err := c.EnrolledUsers(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, users, 2, "duplicate enrollment collapses")
}

func TestCatalogLookups(t *testing.T) {
	ctx := context.Background()
	c := seed()

	_, err := c.Post(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = c.User(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	quiz, err := c.Post(ctx, 42)
	require.NoError(t, err)
	assert.True(t, quiz.IsQuiz())
	cid, err := c.CourseIDFor(ctx, quiz)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cid)

	course, _ := c.Post(ctx, 7)
	cid, _ = c.CourseIDFor(ctx, course)
	assert.Equal(t, int64(7), cid)

	flag, _ := c.ProvisionFlag(ctx, 42)
	assert.True(t, flag)
	flag, _ = c.ProvisionFlag(ctx, 50)
	assert.False(t, flag)

	courses, _ := c.Courses(ctx)
	require.Len(t, courses, 2)
	assert.Equal(t, int64(7), courses[0].ID)
}
