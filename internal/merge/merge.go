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

// Package merge runs the send orchestration loop: render, validate,
// thread-resolve, transmit, pace, and write correlation ids back onto
// the rows.
package merge

import (
	"context"
	"math/rand"
	"time"

	"github.com/matta/gmailmerge/internal/message"
	"github.com/matta/gmailmerge/internal/recipient"
	"github.com/matta/gmailmerge/internal/render"
	"github.com/matta/gmailmerge/internal/retry"
	"github.com/matta/gmailmerge/internal/thread"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// replyHeader is the RFC 2822 header whose value is stored on the row
// for later reply threading.
const replyHeader = "Message-Id"

// Engine drives one merge run. Rows are processed strictly
// sequentially in table order; no two transport calls are ever in
// flight at once.
type Engine struct {
	Transport Transport

	// Archive, when set, receives a copy of every transmitted
	// message.
	Archive Archiver

	// Handler, when set, receives each outcome as it is produced.
	// A handler error stops the run: the handler is the audit
	// pipe, and sending mail that cannot be recorded is worse
	// than stopping.
	Handler func(message.Outcome) error

	// Sleeper and Rand exist so tests can run the loop without
	// wall-clock waits. Both default to the real thing.
	Sleeper retry.Sleeper
	Rand    *rand.Rand

	// Metadata bounds the post-send Message-Id fetch. The zero
	// value means 5 attempts with 2-4s jittered backoff.
	Metadata retry.Policy
}

// Run processes every row and returns the per-row outcomes in table
// order. Rows are mutated in place: a sent or drafted row gets its
// ThreadId and reply message id refreshed. No per-row failure aborts
// the batch; the returned error is non-nil only for run-level
// failures (cancellation between rows, a failed outcome handler).
func (e *Engine) Run(ctx context.Context, rows []*message.Row, cfg message.Config, labelID string) ([]message.Outcome, error) {
	outcomes := make([]message.Outcome, 0, len(rows))
	for i, row := range rows {
		// Cooperative stop point. A row in flight always
		// completes before cancellation is honored.
		select {
		case <-ctx.Done():
			return outcomes, ctx.Err()
		default:
		}

		o := e.processRow(ctx, row, cfg, labelID)
		outcomes = append(outcomes, o)
		if e.Handler != nil {
			if err := e.Handler(o); err != nil {
				return outcomes, errors.Wrap(err, "outcome handler failed")
			}
		}

		switch o.Status {
		case message.StatusSent:
			log.Info("sent", "row", i+1, "to", o.Recipient, "thread", o.ThreadID)
		case message.StatusDrafted:
			log.Info("draft saved", "row", i+1, "to", o.Recipient)
		case message.StatusSkipped:
			log.Warn("skipped", "row", i+1, "recipient", o.Recipient, "reason", o.Detail)
		case message.StatusFailed:
			log.Error("failed", "row", i+1, "to", o.Recipient, "error", o.Detail)
		}

		// Jittered pacing after real sends only; drafts do not
		// engage provider throttling. The spread avoids a
		// fixed-interval sending pattern.
		if o.Status == message.StatusSent && cfg.DelaySeconds > 0 {
			if err := e.sleeper().Sleep(ctx, e.pace(cfg.DelaySeconds)); err != nil {
				return outcomes, err
			}
		}
	}
	return outcomes, nil
}

func (e *Engine) processRow(ctx context.Context, row *message.Row, cfg message.Config, labelID string) message.Outcome {
	raw, _ := row.Get(message.ColumnEmail)
	to, ok := recipient.Extract(raw)
	if !ok {
		return message.Outcome{
			Recipient: raw,
			Status:    message.StatusSkipped,
			Detail:    "no usable email address",
		}
	}

	rendered, err := render.Render(cfg.Subject, cfg.Body, row)
	if err != nil {
		return message.Outcome{Recipient: to, Status: message.StatusFailed, Detail: err.Error()}
	}

	tc, err := thread.Resolve(row, cfg.Mode)
	if err != nil {
		return message.Outcome{Recipient: to, Status: message.StatusSkipped, Detail: err.Error()}
	}

	payload := message.Payload{
		To:         to,
		Subject:    rendered.Subject,
		HTMLBody:   rendered.HTMLBody,
		ThreadID:   tc.ThreadID,
		InReplyTo:  tc.InReplyTo,
		References: tc.References,
	}

	var receipt message.Receipt
	status := message.StatusSent
	if cfg.Mode == message.ModeDraft {
		status = message.StatusDrafted
		receipt, err = e.Transport.CreateDraft(ctx, payload)
	} else {
		receipt, err = e.Transport.Send(ctx, payload)
	}
	if err != nil {
		return message.Outcome{Recipient: to, Status: message.StatusFailed, Detail: err.Error()}
	}

	// A draft has no provider-assigned Message-Id until it is
	// actually sent, so the fetch would only burn its whole backoff
	// budget per drafted row.
	var replyID string
	if status != message.StatusDrafted {
		replyID = e.fetchReplyID(ctx, receipt.ID)
	}

	// Labels are applied to new email only; a follow-up lands in
	// an already-labeled thread and a draft is unsent.
	if cfg.Mode == message.ModeNew && labelID != "" {
		if err := e.Transport.ModifyLabels(ctx, receipt.ID, []string{labelID}); err != nil {
			log.Warn("could not label message", "id", receipt.ID, "error", err)
		}
	}

	if e.Archive != nil {
		if err := e.Archive.Store(receipt, payload); err != nil {
			log.Warn("could not archive message", "id", receipt.ID, "error", err)
		}
	}

	row.Set(message.ColumnThreadID, receipt.ThreadID)
	if status != message.StatusDrafted {
		row.Set(thread.ReplyColumn(row), replyID)
	}

	return message.Outcome{
		Recipient: to,
		Status:    status,
		MessageID: receipt.ID,
		ThreadID:  receipt.ThreadID,
	}
}

// fetchReplyID retrieves the provider-assigned Message-Id header of a
// just-transmitted message. The provider needs a moment to index the
// message, hence the bounded backoff. Failure is non-fatal: the row
// proceeds with an empty identifier and only later follow-ups suffer.
func (e *Engine) fetchReplyID(ctx context.Context, id string) string {
	policy := e.Metadata
	if policy.Attempts == 0 {
		policy.Attempts = 5
		policy.MinBackoff = 2 * time.Second
		policy.MaxBackoff = 4 * time.Second
	}
	if policy.Sleeper == nil {
		policy.Sleeper = e.sleeper()
	}
	if policy.Rand == nil {
		policy.Rand = e.Rand
	}

	var replyID string
	err := policy.Do(ctx, func() error {
		headers, err := e.Transport.GetMessageHeaders(ctx, id, []string{replyHeader})
		if err != nil {
			return err
		}
		v := headers[replyHeader]
		if v == "" {
			return errors.New("message-id header not yet available")
		}
		replyID = v
		return nil
	})
	if err != nil {
		log.Warn("could not resolve reply message id", "id", id, "error", err)
	}
	return replyID
}

// pace draws the post-send pause uniformly from ±10% of the
// configured delay.
func (e *Engine) pace(delaySeconds float64) time.Duration {
	d := time.Duration(delaySeconds * float64(time.Second))
	factor := 0.9 + 0.2*e.random()
	return time.Duration(float64(d) * factor)
}

func (e *Engine) sleeper() retry.Sleeper {
	if e.Sleeper != nil {
		return e.Sleeper
	}
	return retry.ClockSleeper{}
}

func (e *Engine) random() float64 {
	if e.Rand != nil {
		return e.Rand.Float64()
	}
	return rand.Float64()
}
