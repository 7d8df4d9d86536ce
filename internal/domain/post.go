package domain

// PostType values used by the LMS.
const (
	PostTypeCourse = "sfwd-courses"
	PostTypeQuiz   = "sfwd-quiz"
)

// Post is a piece of LMS content: a course or a quiz.
type Post struct {
	ID       int64
	Type     string
	Title    string
	Slug     string
	AuthorID int64
	Status   string // "publish", "draft", ...
}

func (p Post) IsCourse() bool { return p.Type == PostTypeCourse }
func (p Post) IsQuiz() bool   { return p.Type == PostTypeQuiz }

// Permalink is a canonical link that may still contain an unresolved slug
// token (e.g. "%postname%") for posts that were never published.
type Permalink struct {
	Template string
	Slug     string
}
