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

package merge

// This file declares the transport surface the dispatch engine
// requires from a mail provider.

import (
	"context"

	"github.com/matta/gmailmerge/internal/message"
)

// MessageSender transmits a message.
type MessageSender interface {
	Send(ctx context.Context, p message.Payload) (message.Receipt, error)
}

// DraftCreator stores a message as a draft without sending it.
type DraftCreator interface {
	CreateDraft(ctx context.Context, p message.Payload) (message.Receipt, error)
}

// MetadataGetter fetches named RFC 2822 headers of a stored message.
type MetadataGetter interface {
	GetMessageHeaders(ctx context.Context, id string, names []string) (map[string]string, error)
}

// LabelModifier adds label ids to a stored message.
type LabelModifier interface {
	ModifyLabels(ctx context.Context, id string, addLabelIDs []string) error
}

// Transport provides all operations the engine performs against the
// mail provider.
type Transport interface {
	MessageSender
	DraftCreator
	MetadataGetter
	LabelModifier
}

// Archiver keeps a local copy of a transmitted message. Archiving is
// best effort; failures never fail the row.
type Archiver interface {
	Store(receipt message.Receipt, p message.Payload) error
}
