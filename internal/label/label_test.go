package label

import (
	"context"
	"testing"

	"github.com/matta/gmailmerge/internal/message"

	"github.com/pkg/errors"
)

type fakeService struct {
	labels  []message.Label
	nextID  int
	listErr error
	created []string
}

func (f *fakeService) ListLabels(ctx context.Context) ([]message.Label, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.labels, nil
}

func (f *fakeService) CreateLabel(ctx context.Context, name string) (string, error) {
	f.nextID++
	id := "Label_" + string(rune('0'+f.nextID))
	f.labels = append(f.labels, message.Label{ID: id, Name: name})
	f.created = append(f.created, name)
	return id, nil
}

func TestEnsureCreatesMissingLabelOnce(t *testing.T) {
	svc := &fakeService{}
	ctx := context.Background()

	first, err := Ensure(ctx, svc, "Mail Merge Sent")
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if first == "" {
		t.Fatal("Ensure() returned empty id for created label")
	}

	second, err := Ensure(ctx, svc, "Mail Merge Sent")
	if err != nil {
		t.Fatalf("second Ensure() error: %v", err)
	}
	if second != first {
		t.Errorf("second Ensure() = %q, want %q", second, first)
	}
	if len(svc.created) != 1 {
		t.Errorf("created %d labels, want 1", len(svc.created))
	}
}

func TestEnsureMatchesCaseInsensitively(t *testing.T) {
	svc := &fakeService{labels: []message.Label{{ID: "Label_7", Name: "mail merge sent"}}}

	id, err := Ensure(context.Background(), svc, "Mail Merge Sent")
	if err != nil {
		t.Fatalf("Ensure() error: %v", err)
	}
	if id != "Label_7" {
		t.Errorf("Ensure() = %q, want Label_7", id)
	}
	if len(svc.created) != 0 {
		t.Errorf("Ensure() created %d labels for an existing name", len(svc.created))
	}
}

func TestEnsureEmptyNameDisablesLabeling(t *testing.T) {
	svc := &fakeService{listErr: errors.New("should not be called")}
	id, err := Ensure(context.Background(), svc, "  ")
	if err != nil || id != "" {
		t.Errorf("Ensure(empty) = %q, %v; want empty id and nil error", id, err)
	}
}

func TestEnsureTransportFailureIsNonFatal(t *testing.T) {
	svc := &fakeService{listErr: errors.New("boom")}
	id, err := Ensure(context.Background(), svc, "Sent")
	if err == nil {
		t.Fatal("Ensure() succeeded, want error")
	}
	if id != "" {
		t.Errorf("Ensure() = %q, want empty id on failure", id)
	}
}
