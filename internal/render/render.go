// Package render substitutes recipient fields into the subject and
// body templates and converts the body's markdown-lite dialect into a
// minimal HTML document.
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/matta/gmailmerge/internal/message"
)

var (
	placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)
	boldRe        = regexp.MustCompile(`\*\*(.+?)\*\*`)

	// Only http and https links become anchors; other schemes stay
	// literal text.
	linkRe = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^()\s]+)\)`)
)

// MissingFieldError reports a template placeholder with no matching
// column on the row.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("template references missing column %q", e.Field)
}

// Render substitutes row values into both templates and converts the
// body to HTML. The subject is substituted but otherwise untouched.
func Render(subject, body string, row *message.Row) (message.Rendered, error) {
	s, err := substitute(subject, row)
	if err != nil {
		return message.Rendered{}, err
	}
	b, err := substitute(body, row)
	if err != nil {
		return message.Rendered{}, err
	}
	return message.Rendered{Subject: s, HTMLBody: htmlDocument(b)}, nil
}

// substitute replaces every {Column} placeholder with the row's value
// for that column. A placeholder naming an absent column fails with
// MissingFieldError; the caller records it as a per-row failure.
func substitute(tmpl string, row *message.Row) (string, error) {
	var missing *MissingFieldError
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := row.Get(name)
		if !ok {
			if missing == nil {
				missing = &MissingFieldError{Field: name}
			}
			return m
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// htmlDocument applies the markdown-lite rewrites in order and wraps
// the result in a bare HTML shell. The order matters: links and bold
// markers must be rewritten before newlines become <br> tags.
func htmlDocument(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = boldRe.ReplaceAllString(body, "<b>$1</b>")
	body = linkRe.ReplaceAllString(body,
		`<a href="$2" target="_blank" style="color:#1a73e8;">$1</a>`)
	body = strings.ReplaceAll(body, "\n", "<br>")
	body = strings.ReplaceAll(body, "  ", "&nbsp;&nbsp;")
	return `<html><body style="font-family:Arial,Helvetica,sans-serif;font-size:14px;line-height:1.5;">` +
		body + `</body></html>`
}
