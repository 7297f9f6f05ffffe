package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory stand-in for the narrow S3 API the sink uses.
type fakeS3 struct {
	objects  map[string][]byte
	putFails map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), putFails: make(map[string]bool)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if f.putFails[key] {
		return nil, errors.New("injected put failure")
	}
	if in.IfNoneMatch != nil {
		if _, exists := f.objects[key]; exists {
			return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
		}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	for _, obj := range in.Delete.Objects {
		delete(f.objects, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	prefix := aws.ToString(in.Prefix)
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (f *fakeS3) manifest(t *testing.T, key string) TableManifest {
	t.Helper()
	raw, ok := f.objects[key]
	if !ok {
		t.Fatalf("Manifest %s not found", key)
	}
	var m TableManifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Bad manifest %s: %v", key, err)
	}
	return m
}

func TestS3StageAndPublish(t *testing.T) {
	fake := newFakeS3()
	s := NewS3WithClient(fake, "lake", "warehouse/retail")
	ctx := context.Background()

	stageFile(t, s, "run1", "dim_customers", "part-00000.parquet", "customers")

	// Staged object exists but nothing points at it yet
	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run1/part-00000.parquet"]; !ok {
		t.Fatal("Expected staged object uploaded")
	}
	if _, ok := fake.objects["warehouse/retail/dim_customers/_snapshot.json"]; ok {
		t.Fatal("Manifest must not exist before publish")
	}

	locations, err := s.Publish(ctx, "run1", []string{"dim_customers"})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	want := "s3://lake/warehouse/retail/dim_customers/snapshot=run1/"
	if locations["dim_customers"] != want {
		t.Errorf("Expected location %s, got %s", want, locations["dim_customers"])
	}

	m := fake.manifest(t, "warehouse/retail/dim_customers/_snapshot.json")
	if m.RunID != "run1" || m.Location != want {
		t.Errorf("Unexpected manifest: %+v", m)
	}
}

func TestS3PublishCleansUpOldSnapshots(t *testing.T) {
	fake := newFakeS3()
	ctx := context.Background()

	first := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, first, "run1", "dim_customers", "part-00000.parquet", "old")
	if _, err := first.Publish(ctx, "run1", []string{"dim_customers"}); err != nil {
		t.Fatalf("First publish failed: %v", err)
	}

	second := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, second, "run2", "dim_customers", "part-00000.parquet", "new")
	if _, err := second.Publish(ctx, "run2", []string{"dim_customers"}); err != nil {
		t.Fatalf("Second publish failed: %v", err)
	}

	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run1/part-00000.parquet"]; ok {
		t.Error("Expected old snapshot objects deleted after publish")
	}
	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run2/part-00000.parquet"]; !ok {
		t.Error("Expected new snapshot objects retained")
	}
	m := fake.manifest(t, "warehouse/retail/dim_customers/_snapshot.json")
	if m.RunID != "run2" {
		t.Errorf("Expected manifest to point at run2, got %s", m.RunID)
	}
}

func TestS3PublishFailureKeepsOldManifest(t *testing.T) {
	fake := newFakeS3()
	ctx := context.Background()

	first := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, first, "run1", "dim_customers", "part-00000.parquet", "old")
	if _, err := first.Publish(ctx, "run1", []string{"dim_customers"}); err != nil {
		t.Fatalf("First publish failed: %v", err)
	}

	second := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, second, "run2", "dim_customers", "part-00000.parquet", "new")
	fake.putFails["warehouse/retail/dim_customers/_snapshot.json"] = true

	_, err := second.Publish(ctx, "run2", []string{"dim_customers"})
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("Expected ErrPublish, got %v", err)
	}

	// The old snapshot is still the visible one and its data still exists.
	m := fake.manifest(t, "warehouse/retail/dim_customers/_snapshot.json")
	if m.RunID != "run1" {
		t.Errorf("Expected manifest still at run1, got %s", m.RunID)
	}
	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run1/part-00000.parquet"]; !ok {
		t.Error("Expected old snapshot data untouched")
	}
}

func TestS3PublishFailureRestoresSwappedManifests(t *testing.T) {
	fake := newFakeS3()
	ctx := context.Background()

	first := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, first, "run1", "dim_customers", "part-00000.parquet", "old customers")
	stageFile(t, first, "run1", "dim_products", "part-00000.parquet", "old products")
	if _, err := first.Publish(ctx, "run1", []string{"dim_customers", "dim_products"}); err != nil {
		t.Fatalf("First publish failed: %v", err)
	}

	second := NewS3WithClient(fake, "lake", "warehouse/retail")
	stageFile(t, second, "run2", "dim_customers", "part-00000.parquet", "new customers")
	stageFile(t, second, "run2", "dim_products", "part-00000.parquet", "new products")
	fake.putFails["warehouse/retail/dim_products/_snapshot.json"] = true

	_, err := second.Publish(ctx, "run2", []string{"dim_customers", "dim_products"})
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("Expected ErrPublish, got %v", err)
	}

	// The first table's manifest was already swapped to run2 when the second
	// failed; both must be back at run1 so every visible pointer resolves.
	for _, table := range []string{"dim_customers", "dim_products"} {
		m := fake.manifest(t, "warehouse/retail/"+table+"/_snapshot.json")
		if m.RunID != "run1" {
			t.Errorf("Expected %s manifest restored to run1, got %s", table, m.RunID)
		}
		if _, ok := fake.objects["warehouse/retail/"+table+"/snapshot=run1/part-00000.parquet"]; !ok {
			t.Errorf("Expected %s run1 snapshot data untouched", table)
		}
	}

	// Discarding the failed run must leave the visible snapshot intact.
	if err := second.Discard(ctx, "run2"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	for _, table := range []string{"dim_customers", "dim_products"} {
		m := fake.manifest(t, "warehouse/retail/"+table+"/_snapshot.json")
		if _, ok := fake.objects["warehouse/retail/"+table+"/snapshot="+m.RunID+"/part-00000.parquet"]; !ok {
			t.Errorf("Manifest for %s points at snapshot %s but its objects are gone", table, m.RunID)
		}
	}
}

func TestS3PublishFailureRemovesNeverPublishedManifest(t *testing.T) {
	fake := newFakeS3()
	ctx := context.Background()
	s := NewS3WithClient(fake, "lake", "warehouse/retail")

	stageFile(t, s, "run1", "dim_customers", "part-00000.parquet", "customers")
	stageFile(t, s, "run1", "dim_products", "part-00000.parquet", "products")
	fake.putFails["warehouse/retail/dim_products/_snapshot.json"] = true

	_, err := s.Publish(ctx, "run1", []string{"dim_customers", "dim_products"})
	if !errors.Is(err, ErrPublish) {
		t.Fatalf("Expected ErrPublish, got %v", err)
	}
	// No run was ever published, so no manifest may remain behind.
	if _, ok := fake.objects["warehouse/retail/dim_customers/_snapshot.json"]; ok {
		t.Error("Expected first-publish manifest removed after failed publish")
	}
}

func TestS3PublishUnstagedTable(t *testing.T) {
	fake := newFakeS3()
	s := NewS3WithClient(fake, "lake", "")
	_, err := s.Publish(context.Background(), "run1", []string{"fact_orders"})
	if !errors.Is(err, ErrPublish) {
		t.Errorf("Expected ErrPublish for unstaged table, got %v", err)
	}
}

func TestS3RunLock(t *testing.T) {
	fake := newFakeS3()
	ctx := context.Background()
	a := NewS3WithClient(fake, "lake", "warehouse/retail")
	b := NewS3WithClient(fake, "lake", "warehouse/retail")

	if err := a.AcquireRunLock(ctx, "run1"); err != nil {
		t.Fatalf("AcquireRunLock failed: %v", err)
	}
	if err := b.AcquireRunLock(ctx, "run2"); !errors.Is(err, ErrRunLocked) {
		t.Errorf("Expected ErrRunLocked, got %v", err)
	}
	if err := a.ReleaseRunLock(ctx); err != nil {
		t.Fatalf("ReleaseRunLock failed: %v", err)
	}
	if err := b.AcquireRunLock(ctx, "run2"); err != nil {
		t.Errorf("Expected lock acquirable after release, got %v", err)
	}
}

func TestS3Discard(t *testing.T) {
	fake := newFakeS3()
	s := NewS3WithClient(fake, "lake", "warehouse/retail")
	ctx := context.Background()

	stageFile(t, s, "run1", "dim_customers", "part-00000.parquet", "data")
	if err := s.Discard(ctx, "run1"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run1/part-00000.parquet"]; ok {
		t.Error("Expected staged objects deleted by discard")
	}
}

func TestS3DiscardScopedToRun(t *testing.T) {
	fake := newFakeS3()
	s := NewS3WithClient(fake, "lake", "warehouse/retail")
	ctx := context.Background()

	stageFile(t, s, "run1", "dim_customers", "part-00000.parquet", "published")
	if _, err := s.Publish(ctx, "run1", []string{"dim_customers"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// A later failed run on the same sink discards only its own objects.
	stageFile(t, s, "run2", "dim_customers", "part-00000.parquet", "abandoned")
	if err := s.Discard(ctx, "run2"); err != nil {
		t.Fatalf("Discard failed: %v", err)
	}

	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run2/part-00000.parquet"]; ok {
		t.Error("Expected run2 staged objects deleted")
	}
	if _, ok := fake.objects["warehouse/retail/dim_customers/snapshot=run1/part-00000.parquet"]; !ok {
		t.Error("Expected run1 published objects untouched by run2 discard")
	}
	m := fake.manifest(t, "warehouse/retail/dim_customers/_snapshot.json")
	if m.RunID != "run1" {
		t.Errorf("Expected manifest still at run1, got %s", m.RunID)
	}
}
