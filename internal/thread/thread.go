// Package thread decides whether a row continues an existing
// conversation or starts a new one.
package thread

import (
	"strings"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

// ErrMissingThread marks a follow-up row without the identifiers
// needed for reply threading. Such rows are skipped, never silently
// sent as new email.
var ErrMissingThread = errors.New("missing thread/message id")

// Context carries the threading fields for one outgoing message. The
// zero value means "start a new thread".
type Context struct {
	ThreadID   string
	InReplyTo  string
	References string
}

// Resolve returns the thread context for a row under the given mode.
// Outside ModeFollowUp the context is always empty. In ModeFollowUp
// both the thread id and the stored reply message id must be present
// and non-sentinel, otherwise Resolve fails with ErrMissingThread.
//
// In-Reply-To and References are both set to the stored message id:
// single-ancestor threading, not a full reference chain.
func Resolve(row *message.Row, mode message.Mode) (Context, error) {
	if mode != message.ModeFollowUp {
		return Context{}, nil
	}

	threadID := cell(row, message.ColumnThreadID)
	replyID := replyCell(row)
	if threadID == "" || replyID == "" {
		return Context{}, ErrMissingThread
	}
	return Context{
		ThreadID:   threadID,
		InReplyTo:  replyID,
		References: replyID,
	}, nil
}

// ReplyColumn returns the column the row uses for its reply message
// id, preferring the modern name over the legacy alias.
func ReplyColumn(row *message.Row) string {
	if !row.Has(message.ColumnReplyID) && row.Has(message.ColumnReplyIDAlias) {
		return message.ColumnReplyIDAlias
	}
	return message.ColumnReplyID
}

func replyCell(row *message.Row) string {
	if v := cell(row, message.ColumnReplyID); v != "" {
		return v
	}
	return cell(row, message.ColumnReplyIDAlias)
}

// cell reads a column, collapsing not-a-value sentinels to empty.
// Tables exported from spreadsheet tools leak "nan"/"None" strings
// into blank cells.
func cell(row *message.Row, name string) string {
	v, ok := row.Get(name)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "nan", "none", "null":
		return ""
	}
	return v
}
