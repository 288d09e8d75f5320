package thread

import (
	"testing"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

func row(pairs ...string) *message.Row {
	r := message.NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i], pairs[i+1])
	}
	return r
}

func TestResolveNewAndDraftIgnoreThreadColumns(t *testing.T) {
	r := row("ThreadId", "t1", "RfcMessageId", "<m1>")
	for _, mode := range []message.Mode{message.ModeNew, message.ModeDraft} {
		got, err := Resolve(r, mode)
		if err != nil {
			t.Fatalf("Resolve(%v) error: %v", mode, err)
		}
		if got != (Context{}) {
			t.Errorf("Resolve(%v) = %+v, want empty context", mode, got)
		}
	}
}

func TestResolveFollowUp(t *testing.T) {
	got, err := Resolve(row("ThreadId", "t1", "RfcMessageId", "<m1>"), message.ModeFollowUp)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	want := Context{ThreadID: "t1", InReplyTo: "<m1>", References: "<m1>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Resolve() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveFollowUpLegacyMessageIdColumn(t *testing.T) {
	got, err := Resolve(row("ThreadId", "t1", "MessageId", "<m1>"), message.ModeFollowUp)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if got.InReplyTo != "<m1>" || got.References != "<m1>" {
		t.Errorf("Resolve() = %+v, want reply headers from legacy column", got)
	}
}

func TestResolveFollowUpMissingIdentifiers(t *testing.T) {
	cases := []struct {
		name string
		row  *message.Row
	}{
		{"no columns", row("Email", "a@x.com")},
		{"empty thread id", row("ThreadId", "", "RfcMessageId", "<m1>")},
		{"empty message id", row("ThreadId", "t1", "RfcMessageId", "")},
		{"nan sentinel", row("ThreadId", "nan", "RfcMessageId", "<m1>")},
		{"NaN sentinel", row("ThreadId", "t1", "RfcMessageId", "NaN")},
		{"None sentinel", row("ThreadId", "None", "RfcMessageId", "None")},
		{"whitespace", row("ThreadId", "  ", "RfcMessageId", "<m1>")},
	}
	for _, tc := range cases {
		_, err := Resolve(tc.row, message.ModeFollowUp)
		if errors.Cause(err) != ErrMissingThread {
			t.Errorf("%s: Resolve() error = %v, want ErrMissingThread", tc.name, err)
		}
	}
}

func TestReplyColumn(t *testing.T) {
	if got := ReplyColumn(row("RfcMessageId", "<m1>")); got != message.ColumnReplyID {
		t.Errorf("ReplyColumn() = %q, want %q", got, message.ColumnReplyID)
	}
	if got := ReplyColumn(row("MessageId", "<m1>")); got != message.ColumnReplyIDAlias {
		t.Errorf("ReplyColumn() = %q, want legacy %q", got, message.ColumnReplyIDAlias)
	}
	if got := ReplyColumn(row()); got != message.ColumnReplyID {
		t.Errorf("ReplyColumn() on bare row = %q, want %q", got, message.ColumnReplyID)
	}
}
