//-------------------------------------------------------------------------
//
// Starlift Warehouse ETL
//
// Copyright (c) 2025 - 2026, Edgemart, Inc.
// This software is released under the Apache License, Version 2.0
//
//-------------------------------------------------------------------------

package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/edgemart/starlift/internal/logging"
)

const (
	lockKey        = "_lock"
	manifestKey    = "_snapshot.json"
	snapshotPrefix = "snapshot="
	maxDeleteBatch = 1000
)

// s3API is the slice of the S3 client the sink uses; narrowed for tests.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// TableManifest is the per-table pointer object. Updating it is the single
// atomic operation that makes a new snapshot visible; readers resolve the
// current snapshot location through it.
type TableManifest struct {
	RunID       string    `json:"run_id"`
	Location    string    `json:"location"`
	PublishedAt time.Time `json:"published_at"`
}

// S3 is a Sink over an S3 bucket. Each run writes to a fresh
// <table>/snapshot=<runID>/ prefix and publishes by overwriting the small
// per-table manifest object, so the swap is a single PUT per table.
type S3 struct {
	client s3API
	bucket string
	prefix string

	mu     sync.Mutex
	staged map[string]map[string][]string // runID -> table -> staged object keys
}

// NewS3 creates an S3 sink for the given bucket and key prefix.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3WithClient creates an S3 sink with an injected client.
func NewS3WithClient(client s3API, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		staged: make(map[string]map[string][]string),
	}
}

// AcquireRunLock takes the lock with a conditional put: the write succeeds
// only if no lock object exists.
func (s *S3) AcquireRunLock(ctx context.Context, runID string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(lockKey)),
		Body:        strings.NewReader(runID),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return fmt.Errorf("s3://%s/%s: %w", s.bucket, s.key(lockKey), ErrRunLocked)
		}
		return fmt.Errorf("acquire lock: %w", err)
	}
	return nil
}

// ReleaseRunLock deletes the lock object.
func (s *S3) ReleaseRunLock(ctx context.Context) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(lockKey)),
	})
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// Stage buffers one staged file and uploads it on Close under the run's
// snapshot prefix. Staged objects are invisible to readers until the
// manifest points at them.
func (s *S3) Stage(ctx context.Context, runID, table, name string) (io.WriteCloser, error) {
	key := s.key(table, snapshotPrefix+runID, name)
	return &s3Upload{ctx: ctx, sink: s, runID: runID, table: table, objectKey: key}, nil
}

type s3Upload struct {
	ctx       context.Context
	sink      *S3
	runID     string
	table     string
	objectKey string
	buf       bytes.Buffer
}

func (u *s3Upload) Write(p []byte) (int, error) { return u.buf.Write(p) }

func (u *s3Upload) Close() error {
	_, err := u.sink.client.PutObject(u.ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.sink.bucket),
		Key:    aws.String(u.objectKey),
		Body:   bytes.NewReader(u.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", u.objectKey, err)
	}
	u.sink.mu.Lock()
	if u.sink.staged[u.runID] == nil {
		u.sink.staged[u.runID] = make(map[string][]string)
	}
	u.sink.staged[u.runID][u.table] = append(u.sink.staged[u.runID][u.table], u.objectKey)
	u.sink.mu.Unlock()
	return nil
}

// Publish writes the per-table manifest objects, pointing readers at the
// run's snapshot prefixes, then removes now-unreferenced older snapshots.
// A failure partway through restores every manifest already overwritten, so
// the previously published snapshot stays the visible one for all tables.
func (s *S3) Publish(ctx context.Context, runID string, tables []string) (map[string]string, error) {
	s.mu.Lock()
	staged := make(map[string]int, len(s.staged[runID]))
	for table, keys := range s.staged[runID] {
		staged[table] = len(keys)
	}
	s.mu.Unlock()

	locations := make(map[string]string, len(tables))
	for _, table := range tables {
		if staged[table] == 0 {
			return nil, fmt.Errorf("table %s was not staged: %w", table, ErrPublish)
		}
	}

	// prior holds the manifest each table pointed at before this publish,
	// nil when the table had never been published.
	prior := make(map[string][]byte, len(tables))
	var published []string

	for _, table := range tables {
		old, err := s.readManifest(ctx, table)
		if err != nil {
			s.restoreManifests(ctx, published, prior)
			return nil, fmt.Errorf("read manifest for %s: %w: %w", table, err, ErrPublish)
		}
		prior[table] = old

		location := fmt.Sprintf("s3://%s/%s/", s.bucket, s.key(table, snapshotPrefix+runID))
		manifest, err := json.Marshal(TableManifest{
			RunID:       runID,
			Location:    location,
			PublishedAt: time.Now().UTC(),
		})
		if err != nil {
			s.restoreManifests(ctx, published, prior)
			return nil, fmt.Errorf("marshal manifest: %w: %w", err, ErrPublish)
		}
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(s.key(table, manifestKey)),
			Body:        bytes.NewReader(manifest),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			s.restoreManifests(ctx, published, prior)
			return nil, fmt.Errorf("publish manifest for %s: %w: %w", table, err, ErrPublish)
		}
		published = append(published, table)
		locations[table] = location
	}

	// The run's staged objects are the published snapshot now; a later
	// Discard on this sink must not touch them.
	s.mu.Lock()
	delete(s.staged, runID)
	s.mu.Unlock()

	// All manifests updated; older snapshots are unreferenced now.
	for _, table := range tables {
		if err := s.cleanupOldSnapshots(ctx, table, runID); err != nil {
			logging.Warn().Err(err).Str("table", table).Msg("Could not clean up old snapshots")
		}
	}
	return locations, nil
}

// readManifest returns the current manifest bytes for a table, or nil when
// none exists yet.
func (s *S3) readManifest(ctx context.Context, table string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(table, manifestKey)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// restoreManifests puts back the pre-publish manifests of the tables whose
// pointer was already swapped when a later table failed.
func (s *S3) restoreManifests(ctx context.Context, published []string, prior map[string][]byte) {
	for _, table := range published {
		key := s.key(table, manifestKey)
		var err error
		if old := prior[table]; old != nil {
			_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket:      aws.String(s.bucket),
				Key:         aws.String(key),
				Body:        bytes.NewReader(old),
				ContentType: aws.String("application/json"),
			})
		} else {
			_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    aws.String(key),
			})
		}
		if err != nil {
			logging.Error().Err(err).Str("table", table).
				Msg("Could not restore manifest after failed publish")
		}
	}
}

// Discard deletes the objects staged by the given run. Objects staged by
// other runs, and anything already published, are untouched.
func (s *S3) Discard(ctx context.Context, runID string) error {
	s.mu.Lock()
	var keys []string
	for _, staged := range s.staged[runID] {
		keys = append(keys, staged...)
	}
	delete(s.staged, runID)
	s.mu.Unlock()

	return s.deleteKeys(ctx, keys)
}

func (s *S3) cleanupOldSnapshots(ctx context.Context, table, currentRunID string) error {
	prefix := s.key(table, snapshotPrefix)
	keep := s.key(table, snapshotPrefix+currentRunID) + "/"

	var stale []string
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return fmt.Errorf("list snapshots: %w", err)
		}
		for _, obj := range out.Contents {
			if !strings.HasPrefix(aws.ToString(obj.Key), keep) {
				stale = append(stale, aws.ToString(obj.Key))
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return s.deleteKeys(ctx, stale)
}

func (s *S3) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))
		objects := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			objects = append(objects, types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("delete objects: %w", err)
		}
	}
	return nil
}

func (s *S3) key(parts ...string) string {
	if s.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{s.prefix}, parts...)...)
}
