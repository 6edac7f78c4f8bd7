package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ObjectStore keeps artifacts in a JetStream object store bucket.
type ObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewObjectStore creates the bucket, or binds to it when it already exists.
func NewObjectStore(js nats.JetStreamContext, bucket string) (*ObjectStore, error) {
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "Synthesized episode audio",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("create object store bucket %q: %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("bind object store bucket %q: %w", bucket, err)
		}
	}
	return &ObjectStore{bucket: bucket, store: store}, nil
}

// Put uploads data under key and returns a nats://bucket/key reference.
func (o *ObjectStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	name, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if _, err := o.store.Put(&nats.ObjectMeta{Name: name}, bytes.NewReader(data), nats.Context(ctx)); err != nil {
		return "", fmt.Errorf("put object %q to bucket %q: %w", name, o.bucket, err)
	}
	return "nats://" + o.bucket + "/" + name, nil
}
