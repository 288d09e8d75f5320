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

package gmail

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/textproto"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	gmail_api "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

const (
	SendScope    = gmail_api.GmailSendScope
	ComposeScope = gmail_api.GmailComposeScope
	LabelsScope  = gmail_api.GmailLabelsScope
	ModifyScope  = gmail_api.GmailModifyScope

	// See https://developers.google.com/gmail/api/reference/quota
	quotaUnitsMessagesSend   = 100
	quotaUnitsDraftsCreate   = 10
	quotaUnitsMessagesGet    = 5
	quotaUnitsMessagesModify = 5
	quotaUnitsLabelsCreate   = 5
	quotaUnitsLabelsList     = 1

	quotaUnitsPerSecond = 250
	rateLimitPerSecond  = quotaUnitsPerSecond * 0.8
	rateLimitBurst      = quotaUnitsPerSecond
)

// Service sends, drafts and labels messages through the GMail API.
// All calls share one quota-unit rate limiter.
type Service struct {
	service *gmail_api.Service
	limiter *rate.Limiter
}

func New(client *http.Client) (*Service, error) {
	s, err := gmail_api.New(client)
	if err != nil {
		return nil, err
	}
	l := rate.NewLimiter(rateLimitPerSecond, rateLimitBurst)
	return &Service{service: s, limiter: l}, nil
}

func encodeRaw(p message.Payload) string {
	return base64.URLEncoding.EncodeToString([]byte(p.MIME()))
}

// Send transmits the payload, attaching the thread id when the
// payload carries one. Send is never retried here: a duplicate
// delivery is worse than a failed row.
func (s *Service) Send(ctx context.Context, p message.Payload) (message.Receipt, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsMessagesSend); err != nil {
		return message.Receipt{}, err
	}
	m := &gmail_api.Message{Raw: encodeRaw(p), ThreadId: p.ThreadID}
	sent, err := gmail_api.NewUsersMessagesService(s.service).Send("me", m).Context(ctx).Do()
	if err != nil {
		return message.Receipt{}, errors.Wrapf(err, "sending message to %v", p.To)
	}
	return message.Receipt{ID: sent.Id, ThreadID: sent.ThreadId}, nil
}

// CreateDraft stores the payload as a draft without sending it.
func (s *Service) CreateDraft(ctx context.Context, p message.Payload) (message.Receipt, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsDraftsCreate); err != nil {
		return message.Receipt{}, err
	}
	d := &gmail_api.Draft{Message: &gmail_api.Message{Raw: encodeRaw(p), ThreadId: p.ThreadID}}
	created, err := gmail_api.NewUsersDraftsService(s.service).Create("me", d).Context(ctx).Do()
	if err != nil {
		return message.Receipt{}, errors.Wrapf(err, "creating draft for %v", p.To)
	}
	if created.Message == nil {
		return message.Receipt{ID: created.Id}, nil
	}
	return message.Receipt{ID: created.Message.Id, ThreadID: created.Message.ThreadId}, nil
}

// GetMessageHeaders fetches the named RFC 2822 headers of a message.
// Keys of the returned map are in canonical MIME form. Reads are
// retried when the API answers 429.
func (s *Service) GetMessageHeaders(ctx context.Context, id string, names []string) (map[string]string, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsMessagesGet); err != nil {
			return nil, err
		}
		msg, err := gmail_api.NewUsersMessagesService(s.service).Get("me", id).
			Context(ctx).Format("metadata").MetadataHeaders(names...).Do()
		if err != nil {
			if isRateLimited(err) {
				log.Warn("gmail metadata read rate limited; retrying", "id", id)
				continue
			}
			return nil, errors.Wrapf(err, "getting message %v from gmail", id)
		}

		headers := make(map[string]string)
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				headers[textproto.CanonicalMIMEHeaderKey(h.Name)] = h.Value
			}
		}
		return headers, nil
	}
}

// ModifyLabels adds the given label ids to a message.
func (s *Service) ModifyLabels(ctx context.Context, id string, addLabelIDs []string) error {
	if err := s.limiter.WaitN(ctx, quotaUnitsMessagesModify); err != nil {
		return err
	}
	req := &gmail_api.ModifyMessageRequest{AddLabelIds: addLabelIDs}
	_, err := gmail_api.NewUsersMessagesService(s.service).Modify("me", id, req).Context(ctx).Do()
	if err != nil {
		return errors.Wrapf(err, "labeling message %v", id)
	}
	return nil
}

// ListLabels returns the account's labels.
func (s *Service) ListLabels(ctx context.Context) ([]message.Label, error) {
	for {
		if err := s.limiter.WaitN(ctx, quotaUnitsLabelsList); err != nil {
			return nil, err
		}
		resp, err := gmail_api.NewUsersLabelsService(s.service).List("me").Context(ctx).Do()
		if err != nil {
			if isRateLimited(err) {
				log.Warn("gmail label list rate limited; retrying")
				continue
			}
			return nil, errors.Wrap(err, "listing gmail labels")
		}
		labels := make([]message.Label, 0, len(resp.Labels))
		for _, l := range resp.Labels {
			labels = append(labels, message.Label{ID: l.Id, Name: l.Name})
		}
		return labels, nil
	}
}

// CreateLabel creates a user label visible in both the label list and
// the message list, returning its id.
func (s *Service) CreateLabel(ctx context.Context, name string) (string, error) {
	if err := s.limiter.WaitN(ctx, quotaUnitsLabelsCreate); err != nil {
		return "", err
	}
	l := &gmail_api.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}
	created, err := gmail_api.NewUsersLabelsService(s.service).Create("me", l).Context(ctx).Do()
	if err != nil {
		return "", errors.Wrapf(err, "creating gmail label %q", name)
	}
	return created.Id, nil
}

func isRateLimited(err error) bool {
	switch cause := errors.Cause(err).(type) {
	case *googleapi.Error:
		return cause.Code == http.StatusTooManyRequests
	}
	return false
}
