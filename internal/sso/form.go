package sso

import (
	"bytes"
	"html/template"
)

var formTmpl = template.Must(template.New("sso").Parse(
	`<form class="examity-sso" method="post" action="{{.Action}}">` +
		`<input type="hidden" name="userName" value="{{.UserName}}">` +
		`<button type="submit">Launch proctoring</button>` +
		`</form>`))

// RenderForm returns the auto-escaped POST form for the hand-off.
func RenderForm(action, payload string) (string, error) {
	var buf bytes.Buffer
	err := formTmpl.Execute(&buf, struct {
		Action   string
		UserName string
	}{action, payload})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
