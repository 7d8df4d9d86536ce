// Package wpdb reads LearnDash content straight from a WordPress database.
package wpdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"proctor-sync/internal/domain"
	"proctor-sync/internal/lms"
)

// Meta keys LearnDash and the plugin write.
const (
	metaCourseID     = "course_id"
	metaPriceType    = "_ld_price_type"
	metaProvision    = "_examity_provision"
	metaFirstName    = "first_name"
	metaLastName     = "last_name"
	userAccessFormat = "course_%d_access_from"
)

var validPrefix = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

type Source struct {
	db      *sql.DB
	siteURL string

	posts, postmeta, users, usermeta string
}

var _ lms.Source = (*Source)(nil)

// Open opens the WordPress database file read-only.
func Open(path, tablePrefix, siteURL string) (*Source, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, err
	}
	s, err := New(db, tablePrefix, siteURL)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection.
func New(db *sql.DB, tablePrefix, siteURL string) (*Source, error) {
	if !validPrefix.MatchString(tablePrefix) {
		return nil, fmt.Errorf("wpdb: invalid table prefix %q", tablePrefix)
	}
	return &Source{
		db:       db,
		siteURL:  strings.TrimRight(siteURL, "/"),
		posts:    tablePrefix + "posts",
		postmeta: tablePrefix + "postmeta",
		users:    tablePrefix + "users",
		usermeta: tablePrefix + "usermeta",
	}, nil
}

func (s *Source) Close() error { return s.db.Close() }

func (s *Source) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const postColumns = `p.ID, p.post_type, p.post_title, p.post_name, p.post_author, p.post_status`

func scanPosts(rows *sql.Rows) ([]domain.Post, error) {
	defer rows.Close()
	var out []domain.Post
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Type, &p.Title, &p.Slug, &p.AuthorID, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Source) Courses(ctx context.Context) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s p WHERE p.post_type = ? AND p.post_status = 'publish' ORDER BY p.ID`,
		postColumns, s.posts), domain.PostTypeCourse)
	if err != nil {
		return nil, fmt.Errorf("wpdb: courses: %w", err)
	}
	return scanPosts(rows)
}

func (s *Source) Post(ctx context.Context, id int64) (domain.Post, error) {
	var p domain.Post
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s p WHERE p.ID = ?`, postColumns, s.posts), id).
		Scan(&p.ID, &p.Type, &p.Title, &p.Slug, &p.AuthorID, &p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Post{}, lms.ErrNotFound
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("wpdb: post %d: %w", id, err)
	}
	return p, nil
}

func (s *Source) User(ctx context.Context, id int64) (domain.User, error) {
	u := domain.User{ID: id}
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT user_email FROM %s WHERE ID = ?`, s.users), id).Scan(&u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, lms.ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("wpdb: user %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT meta_key, meta_value FROM %s WHERE user_id = ? AND meta_key IN (?, ?)`, s.usermeta),
		id, metaFirstName, metaLastName)
	if err != nil {
		return domain.User{}, fmt.Errorf("wpdb: user %d meta: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.User{}, err
		}
		switch k {
		case metaFirstName:
			u.FirstName = v
		case metaLastName:
			u.LastName = v
		}
	}
	return u, rows.Err()
}

func (s *Source) postMeta(ctx context.Context, postID int64, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT meta_value FROM %s WHERE post_id = ? AND meta_key = ? ORDER BY meta_id LIMIT 1`, s.postmeta),
		postID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("wpdb: post %d meta %s: %w", postID, key, err)
	}
	return v, nil
}

func (s *Source) CourseIDFor(ctx context.Context, post domain.Post) (int64, error) {
	if post.IsCourse() {
		return post.ID, nil
	}
	v, err := s.postMeta(ctx, post.ID, metaCourseID)
	if err != nil {
		return 0, err
	}
	id, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	return id, nil
}

func (s *Source) HasAccess(ctx context.Context, courseID, userID int64) (bool, error) {
	if courseID == 0 || userID == 0 {
		return false, nil
	}
	price, err := s.postMeta(ctx, courseID, metaPriceType)
	if err != nil {
		return false, err
	}
	if price == "open" {
		return true, nil
	}
	var n int
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT COUNT(*) FROM %s WHERE user_id = ? AND meta_key = ?`, s.usermeta),
		userID, fmt.Sprintf(userAccessFormat, courseID)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("wpdb: access %d/%d: %w", courseID, userID, err)
	}
	return n > 0, nil
}

func (s *Source) CourseQuizzes(ctx context.Context, courseID int64) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s p
		JOIN %s m ON m.post_id = p.ID AND m.meta_key = ?
		WHERE p.post_type = ? AND p.post_status = 'publish' AND CAST(m.meta_value AS INTEGER) = ?
		ORDER BY p.ID`, postColumns, s.posts, s.postmeta),
		metaCourseID, domain.PostTypeQuiz, courseID)
	if err != nil {
		return nil, fmt.Errorf("wpdb: course %d quizzes: %w", courseID, err)
	}
	return scanPosts(rows)
}

func (s *Source) GlobalQuizzes(ctx context.Context) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM %s p
		WHERE p.post_type = ? AND p.post_status = 'publish'
		AND NOT EXISTS (
			SELECT 1 FROM %s m
			WHERE m.post_id = p.ID AND m.meta_key = ? AND CAST(m.meta_value AS INTEGER) <> 0
		)
		ORDER BY p.ID`, postColumns, s.posts, s.postmeta),
		domain.PostTypeQuiz, metaCourseID)
	if err != nil {
		return nil, fmt.Errorf("wpdb: global quizzes: %w", err)
	}
	return scanPosts(rows)
}

func (s *Source) EnrolledUsers(ctx context.Context, courseID int64) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT user_id FROM %s WHERE meta_key = ? ORDER BY user_id`, s.usermeta),
		fmt.Sprintf(userAccessFormat, courseID))
	if err != nil {
		return nil, fmt.Errorf("wpdb: course %d users: %w", courseID, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.User(ctx, id)
		if errors.Is(err, lms.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Permalink uses the pretty-permalink structure LearnDash registers for its
// post types. Drafts have no post_name yet, so a slug is derived from the
// title.
func (s *Source) Permalink(_ context.Context, post domain.Post) (domain.Permalink, error) {
	base := "quizzes"
	if post.IsCourse() {
		base = "courses"
	}
	slug := post.Slug
	if slug == "" {
		slug = Slugify(post.Title)
	}
	return domain.Permalink{
		Template: fmt.Sprintf("%s/%s/%%postname%%/", s.siteURL, base),
		Slug:     slug,
	}, nil
}

func (s *Source) ProvisionFlag(ctx context.Context, postID int64) (bool, error) {
	v, err := s.postMeta(ctx, postID, metaProvision)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "on", "yes", "true":
		return true, nil
	}
	return false, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify approximates WordPress' sanitize_title for ASCII titles.
func Slugify(title string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(title), "-"), "-")
}
