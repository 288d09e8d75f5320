package message

// This file provides the common data objects used by the rest of the
// program.

import (
	"fmt"
	"mime"
	"strings"
)

// Reserved column names in the recipient table. ColumnReplyID holds
// the RFC 2822 Message-Id used for reply threading; ColumnReplyIDAlias
// is accepted on input for tables produced by older tools.
const (
	ColumnEmail        = "Email"
	ColumnThreadID     = "ThreadId"
	ColumnReplyID      = "RfcMessageId"
	ColumnReplyIDAlias = "MessageId"
)

// Mode selects how each row is transmitted.
type Mode string

const (
	// ModeNew starts a fresh conversation per row.
	ModeNew Mode = "new"
	// ModeFollowUp replies within the thread recorded on the row.
	ModeFollowUp Mode = "followup"
	// ModeDraft stores the message as a draft instead of sending.
	ModeDraft Mode = "draft"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeNew, ModeFollowUp, ModeDraft:
		return m, nil
	default:
		return "", fmt.Errorf("unknown send mode %q", s)
	}
}

// Row is one recipient record. Column order is preserved from the
// input table; Set appends new columns at the end.
type Row struct {
	columns []string
	values  map[string]string
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]string)}
}

// Get returns the value for the named column and whether the column
// exists on this row.
func (r *Row) Get(name string) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Set stores a value, adding the column if the row does not have it.
func (r *Row) Set(name, value string) {
	if r.values == nil {
		r.values = make(map[string]string)
	}
	if _, ok := r.values[name]; !ok {
		r.columns = append(r.columns, name)
	}
	r.values[name] = value
}

// Has reports whether the row carries the named column.
func (r *Row) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Columns returns the column names in table order.
func (r *Row) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Config holds the per-run merge settings. It is immutable for the
// duration of a run.
type Config struct {
	// Subject and Body are templates with {Column} placeholders.
	Subject string
	Body    string

	// Label is the human label name applied to mail sent in
	// ModeNew. Empty disables labeling.
	Label string

	// DelaySeconds is the target pause between sent messages. The
	// actual pause is drawn uniformly from ±10% of this value.
	DelaySeconds float64

	Mode Mode
}

// Status classifies the outcome of one row.
type Status string

const (
	StatusSent    Status = "sent"
	StatusDrafted Status = "drafted"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one row. Recipient is the
// validated address, or the raw cell value when validation failed.
type Outcome struct {
	Recipient string
	Status    Status

	// MessageID and ThreadID are the provider identifiers of the
	// transmitted message, when known.
	MessageID string
	ThreadID  string

	// Detail carries the failure or skip reason.
	Detail string
}

// Rendered is the output of template rendering for one row.
type Rendered struct {
	Subject  string
	HTMLBody string
}

// Receipt identifies a message accepted by the mail provider.
type Receipt struct {
	ID       string
	ThreadID string
}

// Label is a provider-side label.
type Label struct {
	ID   string
	Name string
}

// Payload is the message handed to the mail transport. ThreadID,
// InReplyTo and References are set only for follow-up sends.
type Payload struct {
	To         string
	Subject    string
	HTMLBody   string
	ThreadID   string
	InReplyTo  string
	References string
}

// MIME renders the payload as an RFC 2822 message with an HTML body.
// CR and LF are stripped from header values so a rendered subject can
// never break out of its header, and a subject with non-ASCII text is
// RFC 2047 encoded.
func (p Payload) MIME() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", sanitizeHeader(p.To))
	fmt.Fprintf(&sb, "Subject: %s\r\n",
		mime.QEncoding.Encode("utf-8", sanitizeHeader(p.Subject)))
	if p.InReplyTo != "" {
		fmt.Fprintf(&sb, "In-Reply-To: %s\r\n", sanitizeHeader(p.InReplyTo))
	}
	if p.References != "" {
		fmt.Fprintf(&sb, "References: %s\r\n", sanitizeHeader(p.References))
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(p.HTMLBody)
	return sb.String()
}

func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}
