package sync

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"proctor-sync/internal/domain"
)

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// required returns ErrValidationFailed naming the first empty field.
// Arguments are name/value pairs.
func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s is empty", ErrValidationFailed, pairs[i])
		}
	}
	return nil
}

func validateUser(u domain.User) error {
	if !validEmail(u.Email) {
		return fmt.Errorf("%w: invalid email %q", ErrValidationFailed, u.Email)
	}
	return required("first name", u.FirstName, "last name", u.LastName)
}

var (
	htmlEntity  = regexp.MustCompile(`&#?[a-zA-Z0-9]+;`)
	doubleSpace = regexp.MustCompile(` {2,}`)
)

// ExamName strips HTML entities from a title and collapses the double spaces
// that leaves behind.
func ExamName(title string) string {
	s := htmlEntity.ReplaceAllString(title, "")
	return strings.TrimSpace(doubleSpace.ReplaceAllString(s, " "))
}

// ResolvePermalink substitutes the slug for any unresolved slug token.
func ResolvePermalink(link domain.Permalink) string {
	return strings.NewReplacer("%postname%", link.Slug, "%pagename%", link.Slug).Replace(link.Template)
}
