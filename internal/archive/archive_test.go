package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/listkeeper/internal/domain"
)

type capturePutter struct {
	input *s3.PutObjectInput
}

func (c *capturePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	c.input = params
	return &s3.PutObjectOutput{}, nil
}

func TestStore_WritesGzippedRunUnderDatedKey(t *testing.T) {
	putter := &capturePutter{}
	a := &PlanArchive{client: putter, bucket: "plans"}

	log := &domain.MaintenanceLog{
		ID:         "run-1",
		ListID:     "list-1",
		Status:     domain.MaintenanceCompleted,
		ExecutedAt: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	if err := a.Store(context.Background(), log); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if got := aws.ToString(putter.input.Key); !strings.HasPrefix(got, "maintenance/2026-08-30/") {
		t.Errorf("key = %q, want dated prefix", got)
	}
	if got := aws.ToString(putter.input.ContentEncoding); got != "gzip" {
		t.Errorf("ContentEncoding = %q", got)
	}

	gz, err := gzip.NewReader(putter.input.Body)
	if err != nil {
		t.Fatalf("body is not gzip: %v", err)
	}
	raw, _ := io.ReadAll(gz)

	var run archivedRun
	if err := json.Unmarshal(raw, &run); err != nil {
		t.Fatalf("archived payload is not JSON: %v", err)
	}
	if run.Log.ID != "run-1" {
		t.Errorf("archived log id = %q", run.Log.ID)
	}
}

func TestStore_NilArchiveIsNoop(t *testing.T) {
	var a *PlanArchive
	if err := a.Store(context.Background(), &domain.MaintenanceLog{}); err != nil {
		t.Errorf("nil archive must no-op, got %v", err)
	}
}
