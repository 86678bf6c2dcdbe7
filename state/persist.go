package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/c360studio/brandstudio/storage"
)

// Persister saves and restores snapshots.
type Persister interface {
	// Load returns the last saved state, or storage.ErrNotFound.
	Load(ctx context.Context) (State, error)

	// Save stores st as the latest state.
	Save(ctx context.Context, st State) error
}

// DefaultKey is the bucket key the snapshot is stored under.
const DefaultKey = "autobrand-studio-storage"

// BucketPersister stores the snapshot as JSON under one key of a bucket.
type BucketPersister struct {
	bucket storage.Bucket
	key    string
}

// NewBucketPersister persists to bucket under DefaultKey.
func NewBucketPersister(bucket storage.Bucket) *BucketPersister {
	return &BucketPersister{bucket: bucket, key: DefaultKey}
}

// Load implements Persister.
func (p *BucketPersister) Load(ctx context.Context) (State, error) {
	data, err := p.bucket.Get(ctx, p.key)
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	return st, nil
}

// Save implements Persister.
func (p *BucketPersister) Save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	return p.bucket.Put(ctx, p.key, data)
}
