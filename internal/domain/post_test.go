package domain

import "testing"

func TestPostKinds(t *testing.T) {
	course := Post{ID: 7, Type: PostTypeCourse, Title: "Algebra I"}
	quiz := Post{ID: 42, Type: PostTypeQuiz}
	page := Post{ID: 1, Type: "page"}

	if !course.IsCourse() || course.IsQuiz() {
		t.Errorf("Expected post %d to be a course", course.ID)
	}
	if !quiz.IsQuiz() || quiz.IsCourse() {
		t.Errorf("Expected post %d to be a quiz", quiz.ID)
	}
	if page.IsCourse() || page.IsQuiz() {
		t.Errorf("Expected post %d to be neither course nor quiz", page.ID)
	}
}
