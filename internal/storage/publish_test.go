package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gocloud.dev/blob/memblob"
)

func TestPublishToMemStore(t *testing.T) {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	store := NewBlobStore(bucket, "mem://", "rides/")
	defer store.Close()

	ref := testRef()
	artifacts := []Artifact{
		{Name: ref.ProcessedName("csv"), Kind: "processed", Data: []byte("a\n1\n"), Rows: 1},
		{Name: ref.SummaryName(), Kind: "summary", Data: []byte("summary")},
	}

	res, err := Publish(ctx, store, ref, ProducerInfo{Name: "ride-pipeline", Version: "test"}, artifacts)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(res.Artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(res.Artifacts))
	}
	if res.Artifacts[0].Key != "rides/"+ref.ProcessedName("csv") {
		t.Errorf("key = %s", res.Artifacts[0].Key)
	}
	if !strings.HasPrefix(res.Artifacts[0].Checksum, "sha256:") {
		t.Errorf("checksum = %s", res.Artifacts[0].Checksum)
	}
	if res.ManifestURI != "mem://rides/_manifest_20240701_093005.json" {
		t.Errorf("manifest uri = %s", res.ManifestURI)
	}

	keys, err := store.List(ctx, "rides/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 {
		t.Errorf("expected 3 published objects and no temps, got %v", keys)
	}

	raw, err := bucket.ReadAll(ctx, res.ManifestKey)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("decode manifest: %v", err)
	}
	if m.Run.Stamp != "20240701_093005" || len(m.Artifacts) != 2 {
		t.Errorf("unexpected manifest: %+v", m)
	}
	if m.Artifacts[0].Checksum != res.Artifacts[0].Checksum {
		t.Error("manifest checksum should match the published artifact")
	}
}

func TestPublishRefusesOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore("")
	defer store.Close()

	ref := testRef()
	artifacts := []Artifact{{Name: ref.SummaryName(), Kind: "summary", Data: []byte("x")}}
	if _, err := Publish(ctx, store, ref, ProducerInfo{}, artifacts); err != nil {
		t.Fatalf("first Publish failed: %v", err)
	}

	_, err := Publish(ctx, store, ref, ProducerInfo{}, artifacts)
	if !errors.Is(err, ErrArtifactExists) {
		t.Fatalf("expected ErrArtifactExists, got %v", err)
	}
}

func TestPublishRejectsEmpty(t *testing.T) {
	store := NewMemStore("")
	defer store.Close()

	if _, err := Publish(context.Background(), store, testRef(), ProducerInfo{}, nil); err == nil {
		t.Fatal("expected error for empty artifact list")
	}
}

// corruptingStore returns altered contents for one key.
type corruptingStore struct {
	*BlobStore
	key string
}

func (s corruptingStore) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.BlobStore.Read(ctx, key)
	if err != nil || key != s.key {
		return data, err
	}
	data[0] ^= 0xff
	return data, nil
}

func TestPublishVerifiesReadBack(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore("rides")
	defer mem.Close()

	ref := testRef()
	artifacts := []Artifact{
		{Name: ref.ProcessedName("csv"), Kind: "processed", Data: []byte("a\n1\n"), Rows: 1},
		{Name: ref.SummaryName(), Kind: "summary", Data: []byte("summary")},
	}
	store := corruptingStore{BlobStore: mem, key: mem.Key(ref.SummaryName())}

	_, err := Publish(ctx, store, ref, ProducerInfo{}, artifacts)
	if !errors.Is(err, ErrVerify) {
		t.Fatalf("expected ErrVerify, got %v", err)
	}

	keys, err := mem.List(ctx, "rides/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("a run that fails verification should leave nothing behind, got %v", keys)
	}
}
