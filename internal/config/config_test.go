package config

import (
	"strings"
	"testing"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/google/go-cmp/cmp"
)

func TestParseFull(t *testing.T) {
	doc := `
subject: "Hi {Name}"
body: |
  Dear {Name},
  see [docs](https://example.com).
label: Outreach
delay_seconds: 12.5
mode: followup
`
	got, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	want := message.Config{
		Subject:      "Hi {Name}",
		Body:         "Dear {Name},\nsee [docs](https://example.com).\n",
		Label:        "Outreach",
		DelaySeconds: 12.5,
		Mode:         message.ModeFollowUp,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDefaults(t *testing.T) {
	got, err := Parse([]byte("subject: s\nbody: b\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got.Mode != message.ModeNew {
		t.Errorf("Mode = %v, want default new", got.Mode)
	}
	if got.Label != "Mail Merge Sent" {
		t.Errorf("Label = %q, want default", got.Label)
	}
	if got.DelaySeconds != 30 {
		t.Errorf("DelaySeconds = %v, want default 30", got.DelaySeconds)
	}
}

func TestParseExplicitZeroDelaySurvivesDefaults(t *testing.T) {
	got, err := Parse([]byte("subject: s\nbody: b\ndelay_seconds: 0\n"))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got.DelaySeconds != 0 {
		t.Errorf("DelaySeconds = %v, want explicit 0", got.DelaySeconds)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"missing subject", "body: b\n", "subject"},
		{"missing body", "subject: s\n", "body"},
		{"negative delay", "subject: s\nbody: b\ndelay_seconds: -1\n", "delay_seconds"},
		{"unknown mode", "subject: s\nbody: b\nmode: blast\n", "mode"},
		{"invalid yaml", "subject: [\n", "parsing"},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		if err == nil {
			t.Errorf("%s: Parse() succeeded, want error", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: error %q does not mention %q", tc.name, err, tc.want)
		}
	}
}
