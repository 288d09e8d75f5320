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

// Package archive keeps a local plain-text copy of every message the
// merge transmits, one file per provider message id, fanned out over
// a small directory farm to keep directories short.
package archive

import (
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

const (
	dirFileMode     = 0700
	messageFileMode = 0600

	pathFarm16 = "abcdefghijklmnop"
)

// Service writes sent messages beneath a single outbox directory.
type Service struct {
	path string
}

type path struct {
	root string
	dirs []string
	base string
}

func (p path) Join() string {
	parts := make([]string, 1, len(p.dirs)+2)
	parts[0] = p.root
	parts = append(parts, p.dirs...)
	parts = append(parts, p.base)
	return filepath.Join(parts...)
}

// New prepares the outbox directory farm rooted at dir.
func New(dir string) (*Service, error) {
	if err := mkdirfarm(dir, 2); err != nil {
		return nil, errors.Wrapf(err, "preparing outbox at %q", dir)
	}
	return &Service{path: dir}, nil
}

// Have reports whether a copy of the message already exists.
func (s *Service) Have(id string) bool {
	_, err := os.Stat(s.makePath(id).Join())
	return err == nil
}

// Store writes the message under its provider id. The payload is
// rendered back to RFC 2822 form with \r\n collapsed to \n, which is
// friendlier to local tooling.
func (s *Service) Store(receipt message.Receipt, p message.Payload) error {
	if receipt.ID == "" {
		return errors.New("message has no ID")
	}
	raw := strings.ReplaceAll(p.MIME(), "\r\n", "\n")
	return os.WriteFile(s.makePath(receipt.ID).Join(), []byte(raw), messageFileMode)
}

// basename holds the fields encoded into the file name of archived
// messages.
type basename struct {
	// A unique string identifying the message: the provider's
	// message id.
	id string
}

// Return the specified string with characters that should not appear
// in an archive filename escaped.
func escape(s string) string {
	hexCount := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			hexCount++
		}
	}

	if hexCount == 0 {
		return s
	}

	t := make([]byte, len(s)+2*hexCount)
	j := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case shouldEscape(c):
			t[j] = '='
			t[j+1] = "0123456789ABCDEF"[c>>4]
			t[j+2] = "0123456789ABCDEF"[c&15]
			j += 3
		default:
			t[j] = s[i]
			j++
		}
	}
	return string(t)
}

// Return true if the specified character should be escaped when
// appearing in an archive filename. Only alphanumeric characters pass
// through; everything else is hex encoded.
func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}
	return true
}

// encode returns the basename in filename-safe form: a distinguisher
// and an encoding version, then the escaped id.
func (b basename) encode() string {
	var sb strings.Builder
	const prefix = "gmailmerge-1-"
	sb.Grow(len(prefix) + len(b.id))
	sb.WriteString(prefix)
	sb.WriteString(escape(b.id))
	return sb.String()
}

func mkdir(dir string) error {
	if err := os.Mkdir(dir, dirFileMode); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

func mkdirfarm(path string, depth int) error {
	if err := mkdir(path); err != nil {
		return err
	}
	if depth == 0 {
		return nil
	}

	for i := 0; i < len(pathFarm16); i++ {
		path := filepath.Join(path, pathFarm16[i:i+1])
		if err := mkdirfarm(path, depth-1); err != nil {
			return err
		}
	}
	return nil
}

func fingerprint(b []byte) uint32 {
	hash := fnv.New32a()
	hash.Write(b)
	return hash.Sum32()
}

func pathParts(id string) []string {
	fp := fingerprint([]byte(id))
	nibble1 := fp & 0xf
	nibble2 := (fp >> 4) & 0xf
	return []string{pathFarm16[nibble1 : nibble1+1], pathFarm16[nibble2 : nibble2+1]}
}

func (s *Service) makePath(id string) path {
	return path{
		root: s.path,
		dirs: pathParts(id),
		base: basename{id: id}.encode(),
	}
}
