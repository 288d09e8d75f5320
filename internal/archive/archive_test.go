// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package archive

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matta/gmailmerge/internal/message"
)

func TestBasenameEncode(t *testing.T) {
	cases := []struct {
		name basename
		want string
	}{
		{
			name: basename{"abc123"},
			want: "gmailmerge-1-abc123",
		},
		{
			name: basename{"a/b.c"},
			want: "gmailmerge-1-a=2Fb=2Ec",
		},
		{
			name: basename{"\n\t"},
			want: "gmailmerge-1-=0A=09",
		},
	}
	for _, tc := range cases {
		if got := tc.name.encode(); got != tc.want {
			t.Errorf("basename(%q).encode() = %q, want %q", tc.name.id, got, tc.want)
		}
	}
}

func TestPathPartsStable(t *testing.T) {
	a := pathParts("msg-1")
	b := pathParts("msg-1")
	if a[0] != b[0] || a[1] != b[1] {
		t.Errorf("pathParts not deterministic: %v vs %v", a, b)
	}
	for _, part := range a {
		if len(part) != 1 || !strings.Contains(pathFarm16, part) {
			t.Errorf("pathParts produced invalid farm dir %q", part)
		}
	}
}

func TestNewBuildsFarm(t *testing.T) {
	root := filepath.Join(t.TempDir(), "outbox")
	if _, err := New(root); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	stat, err := os.Stat(filepath.Join(root, "a", "p"))
	if err != nil {
		t.Fatalf("farm directory missing: %v", err)
	}
	if !stat.IsDir() {
		t.Error("farm entry is not a directory")
	}
}

func TestStoreAndHave(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "outbox"))
	if err != nil {
		t.Fatal(err)
	}

	receipt := message.Receipt{ID: "msg-1", ThreadID: "thr-1"}
	p := message.Payload{To: "a@x.com", Subject: "Hi", HTMLBody: "<html>x</html>"}

	if s.Have(receipt.ID) {
		t.Error("Have() true before Store()")
	}
	if err := s.Store(receipt, p); err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if !s.Have(receipt.ID) {
		t.Error("Have() false after Store()")
	}

	raw, err := os.ReadFile(s.makePath(receipt.ID).Join())
	if err != nil {
		t.Fatalf("reading archived message: %v", err)
	}
	if strings.Contains(string(raw), "\r\n") {
		t.Error("archived message retains CRLF line endings")
	}
	if !strings.Contains(string(raw), "To: a@x.com\n") {
		t.Errorf("archived message missing headers:\n%s", raw)
	}
}

func TestStoreRejectsEmptyID(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "outbox"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Store(message.Receipt{}, message.Payload{}); err == nil {
		t.Error("Store() with empty id succeeded")
	}
}
