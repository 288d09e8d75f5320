// Package label resolves a human label name to a provider label id,
// creating the label when it does not exist.
package label

import (
	"context"
	"strings"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

// Lister lists the labels of a mail account.
type Lister interface {
	ListLabels(ctx context.Context) ([]message.Label, error)
}

// Creator creates a label and returns its id.
type Creator interface {
	CreateLabel(ctx context.Context, name string) (string, error)
}

// Service is the label surface of a mail transport.
type Service interface {
	Lister
	Creator
}

// Ensure returns the id of the named label, creating it if absent.
// Name matching is case-insensitive. An empty name disables labeling
// and returns no id without touching the transport.
//
// Failure here degrades the run to "no labeling"; the caller logs the
// returned error as a warning and continues.
func Ensure(ctx context.Context, svc Service, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	labels, err := svc.ListLabels(ctx)
	if err != nil {
		return "", errors.Wrap(err, "label setup failed")
	}
	for _, l := range labels {
		if strings.EqualFold(l.Name, name) {
			return l.ID, nil
		}
	}

	id, err := svc.CreateLabel(ctx, name)
	if err != nil {
		return "", errors.Wrap(err, "label setup failed")
	}
	return id, nil
}
