package examity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"proctor-sync/internal/httpx"
)

// ErrUserNotFound is returned by GetUserInfo when the remote has no such user.
var ErrUserNotFound = errors.New("examity: user not found")

type TokenRequest struct {
	ClientID  string `json:"clientID"`
	SecretKey string `json:"secretKey"`
}

type TokenResponse struct {
	AuthInfo struct {
		AccessToken string `json:"access_token"`
	} `json:"authInfo"`
	// TimeStamp is the server-reported issuance time; its shape varies
	// (string or epoch number), so it is decoded by the token cache.
	TimeStamp json.RawMessage `json:"timeStamp"`
}

type User struct {
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
}

type UserInfoResponse struct {
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message,omitempty"`
	UserInfo   *User  `json:"userInfo,omitempty"`
}

type Course struct {
	CourseID     string `json:"courseId"`
	CourseName   string `json:"courseName"`
	UserID       string `json:"userId"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
}

type Enrollment struct {
	CourseID string `json:"courseId"`
	UserID   string `json:"userId"`
}

type Exam struct {
	CourseID      string `json:"courseId"`
	ExamID        string `json:"examId"`
	ExamName      string `json:"examName"`
	ExamURL       string `json:"examURL"`
	ExamDuration  int    `json:"examDuration"`
	ExamStartDate string `json:"examStartDate"`
	ExamEndDate   string `json:"examEndDate"`
}

// RequestToken exchanges the client credentials for a bearer token.
// This is the only unauthenticated call.
func (c *Client) RequestToken(ctx context.Context, clientID, secretKey string) (TokenResponse, error) {
	var out TokenResponse
	err := c.send(ctx, "token", http.MethodPost, c.endpoint("token"), "",
		TokenRequest{ClientID: clientID, SecretKey: secretKey}, &out)
	if err != nil {
		return TokenResponse{}, err
	}
	if strings.TrimSpace(out.AuthInfo.AccessToken) == "" {
		return TokenResponse{}, &httpx.DecodeError{Err: errors.New("examity token: access_token not found")}
	}
	return out, nil
}

// GetUserInfo looks up a remote user. A 404, or a 2xx body whose status or
// message says "not found", yields ErrUserNotFound.
func (c *Client) GetUserInfo(ctx context.Context, token, userID string) (*UserInfoResponse, error) {
	var out UserInfoResponse
	err := c.send(ctx, "get user info", http.MethodGet, c.endpoint("user", userID, "info"), token, nil, &out)
	if err != nil {
		if httpx.StatusCode(err) == http.StatusNotFound {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if out.StatusCode == http.StatusNotFound || strings.Contains(strings.ToLower(out.Message), "not found") {
		return nil, ErrUserNotFound
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, token string, u User) error {
	return c.send(ctx, "create user", http.MethodPost, c.endpoint("user"), token, u, nil)
}

// DeleteUser is never called by provisioning; it exists for administrative use.
func (c *Client) DeleteUser(ctx context.Context, token, userID string) error {
	return c.send(ctx, "delete user", http.MethodDelete, c.endpoint("user", userID), token, nil, nil)
}

func (c *Client) CreateCourse(ctx context.Context, token string, course Course) error {
	return c.send(ctx, "create course", http.MethodPost, c.endpoint("course"), token, course, nil)
}

func (c *Client) EnrollUser(ctx context.Context, token string, e Enrollment) error {
	return c.send(ctx, "enroll user", http.MethodPost, c.endpoint("course", e.CourseID, "user", e.UserID), token, e, nil)
}

func (c *Client) CreateExam(ctx context.Context, token string, exam Exam) error {
	return c.send(ctx, "create exam", http.MethodPost, c.endpoint("course", exam.CourseID, "exam"), token, exam, nil)
}
