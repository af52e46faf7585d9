package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
)

// ObjectClient is the subset of the S3 client the store uses.
// *s3.Client from internal/infra/s3 satisfies it.
type ObjectClient interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
}

// S3Blobs stores each document as one object,
// folder-permissions/<sha256(operator)>/<hub>_<project>.age.
type S3Blobs struct {
	client ObjectClient
}

func NewS3Blobs(client ObjectClient) *S3Blobs {
	return &S3Blobs{client: client}
}

// ObjectKey returns the object key for key. The operator id is hashed so
// bucket listings do not expose Autodesk user ids.
func ObjectKey(key Key) string {
	sum := sha256.Sum256([]byte(key.OperatorID))
	return path.Join(s3KeyPrefix, hex.EncodeToString(sum[:]), key.DocumentName()+s3ObjectSuffix)
}

func (b *S3Blobs) Put(ctx context.Context, key Key, data []byte) error {
	return b.client.PutObject(ctx, ObjectKey(key), data, s3ContentType)
}

func (b *S3Blobs) Get(ctx context.Context, key Key) ([]byte, error) {
	return b.client.GetObject(ctx, ObjectKey(key))
}

func (b *S3Blobs) Has(ctx context.Context, key Key) (bool, error) {
	return b.client.ObjectExists(ctx, ObjectKey(key))
}
