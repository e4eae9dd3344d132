package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/withObsrvr/ride-bookings-pipeline/internal/tables"
)

var (
	// ErrArtifactExists is returned when a run's artifact is already published.
	ErrArtifactExists = errors.New("artifact already exists")

	// ErrVerify is returned when a published artifact does not read back as written.
	ErrVerify = errors.New("published artifact does not match")
)

// Artifact is one file to publish.
type Artifact struct {
	Name string // file name, see RunRef
	Kind string // "processed" | "no_outliers" | "summary" ...
	Data []byte
	Rows int64
}

// PublishedArtifact describes a file after publishing.
type PublishedArtifact struct {
	Name     string
	Kind     string
	Key      string
	URI      string
	Checksum string
	ByteSize int64
	Rows     int64
}

// PublishResult contains the outcome of a successful publish.
type PublishResult struct {
	Artifacts   []PublishedArtifact
	ManifestKey string
	ManifestURI string
	Published   time.Time
}

// Publish writes every artifact plus a manifest as one unit.
//
// The order of operations is:
//  1. Refuse to overwrite an existing artifact
//  2. Write every artifact and the manifest to temp keys
//  3. Finalize all temps together
//  4. Read every artifact back and check its size and checksum
//
// Any failure aborts the temps so no partial run is left behind. A failed
// read-back check removes the published keys.
func Publish(ctx context.Context, store Store, ref RunRef, producer ProducerInfo, artifacts []Artifact) (*PublishResult, error) {
	if len(artifacts) == 0 {
		return nil, errors.New("no artifacts to publish")
	}

	for _, a := range artifacts {
		exists, err := store.Exists(ctx, a.Name)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", a.Name, err)
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrArtifactExists, store.Key(a.Name))
		}
	}

	manifest := &Manifest{
		Run: RunInfo{
			Dataset: ref.Dataset,
			RunID:   ref.RunID,
			Stamp:   ref.Stamp(),
			Source:  ref.Source,
		},
		Producer:  producer,
		CreatedAt: time.Now().UTC(),
	}

	result := &PublishResult{}
	var pending []Pending
	abort := func() {
		store.Abort(ctx, tempKeys(pending))
	}

	for _, a := range artifacts {
		tempKey, err := store.WriteTemp(ctx, a.Name, a.Data)
		if err != nil {
			abort()
			return nil, fmt.Errorf("write %s: %w", a.Name, err)
		}
		key := store.Key(a.Name)
		pending = append(pending, Pending{TempKey: tempKey, Key: key})

		checksum := tables.ComputeChecksum(a.Data)
		manifest.Artifacts = append(manifest.Artifacts, ArtifactInfo{
			File:     a.Name,
			Kind:     a.Kind,
			Checksum: checksum,
			RowCount: a.Rows,
			ByteSize: int64(len(a.Data)),
		})
		result.Artifacts = append(result.Artifacts, PublishedArtifact{
			Name:     a.Name,
			Kind:     a.Kind,
			Key:      key,
			URI:      store.URI(key),
			Checksum: checksum,
			ByteSize: int64(len(a.Data)),
			Rows:     a.Rows,
		})
	}

	manifestData, err := manifest.MarshalJSON()
	if err != nil {
		abort()
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestTemp, err := store.WriteTemp(ctx, ref.ManifestName(), manifestData)
	if err != nil {
		abort()
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	result.ManifestKey = store.Key(ref.ManifestName())
	result.ManifestURI = store.URI(result.ManifestKey)
	pending = append(pending, Pending{TempKey: manifestTemp, Key: result.ManifestKey})

	if err := store.Finalize(ctx, pending); err != nil {
		return nil, fmt.Errorf("finalize: %w", err)
	}

	if err := verify(ctx, store, result.Artifacts); err != nil {
		store.Abort(ctx, finalKeys(pending))
		return nil, err
	}

	result.Published = time.Now().UTC()
	return result, nil
}

// verify reads every published artifact back from the store.
func verify(ctx context.Context, store Store, artifacts []PublishedArtifact) error {
	for _, a := range artifacts {
		info, err := store.Head(ctx, a.Key)
		if err != nil {
			return fmt.Errorf("verify %s: %w", a.Key, err)
		}
		if info.Size != a.ByteSize {
			return fmt.Errorf("%w: %s is %d bytes, wrote %d", ErrVerify, a.Key, info.Size, a.ByteSize)
		}
		data, err := store.Read(ctx, a.Key)
		if err != nil {
			return fmt.Errorf("verify %s: %w", a.Key, err)
		}
		if !tables.VerifyChecksum(data, a.Checksum) {
			return fmt.Errorf("%w: %s checksum differs from %s", ErrVerify, a.Key, a.Checksum)
		}
	}
	return nil
}

func finalKeys(pending []Pending) []string {
	keys := make([]string, len(pending))
	for i, p := range pending {
		keys[i] = p.Key
	}
	return keys
}
