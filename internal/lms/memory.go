package lms

import (
	"context"
	"sort"
	"sync"

	"proctor-sync/internal/domain"
)

// Catalog is an in-memory Source. It backs tests and the demo seed of the
// server binary.
type Catalog struct {
	mu sync.RWMutex

	posts     map[int64]domain.Post
	users     map[int64]domain.User
	quizOf    map[int64]int64 // quiz id -> course id (0 = global)
	enrolled  map[int64][]int64
	open      map[int64]bool
	flagged   map[int64]bool
	permalink map[int64]domain.Permalink
}

var _ Source = (*Catalog)(nil)

func NewCatalog() *Catalog {
	return &Catalog{
		posts:     make(map[int64]domain.Post),
		users:     make(map[int64]domain.User),
		quizOf:    make(map[int64]int64),
		enrolled:  make(map[int64][]int64),
		open:      make(map[int64]bool),
		flagged:   make(map[int64]bool),
		permalink: make(map[int64]domain.Permalink),
	}
}

func (c *Catalog) AddUser(u domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

func (c *Catalog) AddCourse(p domain.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Type = domain.PostTypeCourse
	c.posts[p.ID] = p
}

// AddQuiz attaches a quiz to courseID; 0 makes it global.
func (c *Catalog) AddQuiz(p domain.Post, courseID int64, provision bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p.Type = domain.PostTypeQuiz
	c.posts[p.ID] = p
	c.quizOf[p.ID] = courseID
	c.flagged[p.ID] = provision
}

func (c *Catalog) Enroll(courseID int64, userIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrolled[courseID] = append(c.enrolled[courseID], userIDs...)
}

// SetOpen grants every user access to the course.
func (c *Catalog) SetOpen(courseID int64, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open[courseID] = open
}

func (c *Catalog) SetPermalink(postID int64, link domain.Permalink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.permalink[postID] = link
}

func (c *Catalog) Courses(context.Context) ([]domain.Post, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Post
	for _, p := range c.posts {
		if p.IsCourse() {
			out = append(out, p)
		}
	}
	sortPosts(out)
	return out, nil
}

func (c *Catalog) Post(_ context.Context, id int64) (domain.Post, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posts[id]
	if !ok {
		return domain.Post{}, ErrNotFound
	}
	return p, nil
}

func (c *Catalog) User(_ context.Context, id int64) (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (c *Catalog) CourseIDFor(_ context.Context, post domain.Post) (int64, error) {
	if post.IsCourse() {
		return post.ID, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.quizOf[post.ID], nil
}

func (c *Catalog) HasAccess(_ context.Context, courseID, userID int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if courseID == 0 || userID == 0 {
		return false, nil
	}
	if c.open[courseID] {
		return true, nil
	}
	for _, id := range c.enrolled[courseID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Catalog) CourseQuizzes(_ context.Context, courseID int64) ([]domain.Post, error) {
	return c.quizzesWhere(func(cid int64) bool { return cid == courseID && courseID != 0 }), nil
}

func (c *Catalog) GlobalQuizzes(context.Context) ([]domain.Post, error) {
	return c.quizzesWhere(func(cid int64) bool { return cid == 0 }), nil
}

func (c *Catalog) quizzesWhere(match func(courseID int64) bool) []domain.Post {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.Post
	for id, cid := range c.quizOf {
		if match(cid) {
			out = append(out, c.posts[id])
		}
	}
	sortPosts(out)
	return out
}

func (c *Catalog) EnrolledUsers(_ context.Context, courseID int64) ([]domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.User
	seen := map[int64]bool{}
	for _, id := range c.enrolled[courseID] {
		u, ok := c.users[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, u)
	}
	return out, nil
}

func (c *Catalog) Permalink(_ context.Context, post domain.Post) (domain.Permalink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if link, ok := c.permalink[post.ID]; ok {
		return link, nil
	}
	return domain.Permalink{}, ErrNotFound
}

func (c *Catalog) ProvisionFlag(_ context.Context, postID int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flagged[postID], nil
}

func sortPosts(posts []domain.Post) {
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
}
