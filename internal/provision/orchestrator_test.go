package provision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor-sync/internal/domain"
	"proctor-sync/internal/examity"
	"proctor-sync/internal/lms"
	"proctor-sync/internal/logx"
	"proctor-sync/internal/report"
	"proctor-sync/internal/store"
	psync "proctor-sync/internal/sync"
	"proctor-sync/internal/token"
)

// remote is a fake proctoring API that records every call in order.
type remote struct {
	mu    gosync.Mutex
	calls []string
	users map[string]bool
}

func (r *remote) log(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *remote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *remote) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		path := strings.TrimPrefix(req.URL.Path, "/api/")
		parts := strings.Split(path, "/")
		var body map[string]any
		if req.Body != nil {
			_ = json.NewDecoder(req.Body).Decode(&body)
		}

		switch {
		case req.Method == http.MethodPost && path == "token":
			r.log("token")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"authInfo":  map[string]string{"access_token": "tok"},
				"timeStamp": time.Now().UTC().Format(time.RFC3339),
			})
		case req.Method == http.MethodGet && len(parts) == 3 && parts[0] == "user" && parts[2] == "info":
			assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
			r.log("info:" + parts[1])
			r.mu.Lock()
			known := r.users[parts[1]]
			r.mu.Unlock()
			if !known {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"statusCode":404,"message":"User not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"statusCode":200,"userInfo":{"userId":"` + parts[1] + `"}}`))
		case req.Method == http.MethodPost && path == "user":
			r.log("user:" + body["userId"].(string))
			r.mu.Lock()
			r.users[body["userId"].(string)] = true
			r.mu.Unlock()
			_, _ = w.Write([]byte(`{}`))
		case req.Method == http.MethodPost && path == "course":
			r.log("course:" + body["courseId"].(string))
			_, _ = w.Write([]byte(`{}`))
		case req.Method == http.MethodPost && len(parts) == 3 && parts[0] == "course" && parts[2] == "exam":
			r.log("exam:" + body["examId"].(string))
			_, _ = w.Write([]byte(`{}`))
		case req.Method == http.MethodPost && len(parts) == 4 && parts[0] == "course" && parts[2] == "user":
			r.log("enroll:" + parts[1] + "/" + parts[3])
			_, _ = w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}
}

type fixture struct {
	remote *remote
	cat    *lms.Catalog
	orch   *Orchestrator
}

func newFixture(t *testing.T, knownUsers ...string) *fixture {
	t.Helper()
	rem := &remote{users: map[string]bool{}}
	for _, u := range knownUsers {
		rem.users[u] = true
	}
	srv := httptest.NewServer(rem.handler(t))
	t.Cleanup(srv.Close)

	client, err := examity.New(examity.Options{BaseURL: srv.URL + "/api", Timeout: 5 * time.Second})
	require.NoError(t, err)

	cat := lms.NewCatalog()
	cat.AddUser(domain.User{ID: 3, Email: "prof@x.edu", FirstName: "Pat", LastName: "Prof"})
	cat.AddUser(domain.User{ID: 10, Email: "a@x.edu", FirstName: "Ann", LastName: "Lee"})
	cat.AddUser(domain.User{ID: 11, Email: "b@x.edu", FirstName: "Bo", LastName: "Kim"})
	cat.AddCourse(domain.Post{ID: 7, Title: "Algebra I", AuthorID: 3, Slug: "algebra-i"})
	cat.AddQuiz(domain.Post{ID: 42, Title: "Midterm", Slug: "midterm"}, 7, true)
	cat.SetPermalink(42, domain.Permalink{Template: "https://lms.test/quizzes/%postname%/", Slug: "midterm"})
	cat.Enroll(7, 10, 11)

	tokens := &token.Cache{
		Store:     store.NewMemory(),
		Fetcher:   client,
		ClientID:  "id",
		SecretKey: "secret",
		Location:  time.UTC,
		Logger:    logx.Discard(),
	}
	syncer := &psync.Synchronizer{
		Client: func() (psync.API, error) { return client, nil },
		Tokens: tokens,
		LMS:    cat,
		SiteID: 1,
		Window: psync.WindowRolling,
	}
	return &fixture{
		remote: rem,
		cat:    cat,
		orch:   &Orchestrator{Sync: syncer, LMS: cat},
	}
}

func quiet() context.Context {
	return logx.WithContext(context.Background(), logx.Discard())
}

func TestProvisionAllEndToEnd(t *testing.T) {
	f := newFixture(t, "a@x.edu", "b@x.edu")

	run := f.orch.ProvisionAll(quiet())

	assert.Equal(t, []string{
		"token",
		"course:1_7",
		"exam:1_42",
		"info:a@x.edu",
		"info:b@x.edu",
		"enroll:1_7/a@x.edu",
		"enroll:1_7/b@x.edu",
	}, f.remote.Calls())
	assert.Equal(t, 1, run.Courses)
	assert.Len(t, run.ID, 26)
	assert.Equal(t, 4, run.Count(psync.Created))
	assert.Equal(t, 2, run.Count(psync.Exists))
	assert.Empty(t, run.Errors)
}

func TestProvisionAllCreatesMissingUsers(t *testing.T) {
	f := newFixture(t, "a@x.edu")

	f.orch.ProvisionAll(quiet())

	assert.Equal(t, []string{
		"token",
		"course:1_7",
		"exam:1_42",
		"info:a@x.edu",
		"info:b@x.edu",
		"user:b@x.edu",
		"enroll:1_7/a@x.edu",
		"enroll:1_7/b@x.edu",
	}, f.remote.Calls())
}

func TestProvisionAllSkipsCoursesWithoutQuizzes(t *testing.T) {
	f := newFixture(t, "a@x.edu", "b@x.edu")
	f.cat.AddCourse(domain.Post{ID: 8, Title: "Reading Only", AuthorID: 3})
	f.cat.Enroll(8, 10, 11)

	run := f.orch.ProvisionAll(quiet())

	for _, c := range f.remote.Calls() {
		assert.NotContains(t, c, "1_8")
	}
	assert.Equal(t, 1, run.Courses)
}

func TestProvisionAllGlobalQuizzesJoinEveryCourse(t *testing.T) {
	f := newFixture(t, "a@x.edu", "b@x.edu")
	f.cat.AddCourse(domain.Post{ID: 8, Title: "Geometry", AuthorID: 3})
	f.cat.AddQuiz(domain.Post{ID: 50, Title: "Placement"}, 0, true)
	f.cat.SetPermalink(50, domain.Permalink{Template: "https://lms.test/quizzes/%postname%/", Slug: "placement"})

	run := f.orch.ProvisionAll(quiet())

	calls := f.remote.Calls()
	assert.Contains(t, calls, "course:1_8")
	assert.Equal(t, 2, run.Courses)
	exams := 0
	for _, c := range calls {
		if c == "exam:1_50" {
			exams++
		}
	}
	assert.Equal(t, 2, exams, "global quiz provisioned under both courses")
}

func TestProvisionAllCourseBeforeDependentsInParallel(t *testing.T) {
	f := newFixture(t, "a@x.edu", "b@x.edu")
	for id := int64(100); id < 110; id++ {
		f.cat.AddCourse(domain.Post{ID: id, Title: "Course", AuthorID: 3})
		f.cat.AddQuiz(domain.Post{ID: id + 1000, Title: "Quiz"}, id, true)
		f.cat.SetPermalink(id+1000, domain.Permalink{Template: "https://lms.test/q/%postname%/", Slug: "q"})
		f.cat.Enroll(id, 10)
	}
	f.orch.Workers = 4

	run := f.orch.ProvisionAll(quiet())
	assert.Equal(t, 11, run.Courses)

	created := map[string]int{}
	for i, c := range f.remote.Calls() {
		switch {
		case strings.HasPrefix(c, "course:"):
			created[strings.TrimPrefix(c, "course:")] = i
		case strings.HasPrefix(c, "enroll:"):
			cid := strings.SplitN(strings.TrimPrefix(c, "enroll:"), "/", 2)[0]
			pos, ok := created[cid]
			require.True(t, ok, "enrollment for %s before its course", cid)
			assert.Less(t, pos, i)
		}
	}
}

func TestProvisionAllWritesReport(t *testing.T) {
	f := newFixture(t, "a@x.edu", "b@x.edu")
	dir := t.TempDir()
	f.orch.Report = &report.Writer{Dir: dir}

	run := f.orch.ProvisionAll(quiet())

	b, err := os.ReadFile(filepath.Join(dir, "provision-"+run.ID+".csv"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "course,1_7,created")
}

func TestProvisionObjectCourse(t *testing.T) {
	f := newFixture(t)

	results := f.orch.ProvisionObject(quiet(), 7, 10)

	assert.Equal(t, []string{
		"token",
		"info:a@x.edu",
		"user:a@x.edu",
		"course:1_7",
		"enroll:1_7/a@x.edu",
		"exam:1_42",
	}, f.remote.Calls())
	assert.Len(t, results, 4)
}

func TestProvisionObjectQuiz(t *testing.T) {
	f := newFixture(t)

	results := f.orch.ProvisionObject(quiet(), 42, 10)

	assert.Equal(t, []string{"token", "exam:1_42"}, f.remote.Calls())
	require.Len(t, results, 1)
	assert.Equal(t, psync.Created, results[0].Outcome)
}

func TestProvisionObjectShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.cat.AddQuiz(domain.Post{ID: 50, Title: "Placement"}, 0, true)

	assert.Empty(t, f.orch.ProvisionObject(quiet(), 7, 3), "instructor is not enrolled")
	assert.Empty(t, f.orch.ProvisionObject(quiet(), 50, 10), "global quiz has no course")
	assert.Empty(t, f.orch.ProvisionObject(quiet(), 999, 10), "unknown post")
	assert.Empty(t, f.remote.Calls())
}

func TestNewRunIDSortsByTime(t *testing.T) {
	a := NewRunID(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	b := NewRunID(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Less(t, a, b)
}
