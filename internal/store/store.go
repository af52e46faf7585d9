// Package store persists desired-state documents, one per operator, hub and
// project.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/sealed"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
)

// Key addresses one document. Documents are private to OperatorID.
type Key struct {
	OperatorID string
	HubID      string
	ProjectID  string
}

// DocumentName is "<hubId>_<projectId>".
func (k Key) DocumentName() string {
	return k.HubID + "_" + k.ProjectID
}

func (k Key) Validate() error {
	if k.OperatorID == "" {
		return apperrors.Unauthorized("operator identity is required")
	}
	fields := []struct{ name, value string }{{"hubId", k.HubID}, {"projectId", k.ProjectID}}
	for _, f := range fields {
		if f.value == "" {
			return apperrors.Validation(f.name + " is required")
		}
		if strings.ContainsAny(f.value, "/\\") || strings.Contains(f.value, "..") {
			return apperrors.Validation(f.name + " contains invalid characters")
		}
	}
	return nil
}

// Store saves and loads documents wholesale. Load returns an error wrapping
// apperrors.ErrNotFound when no document exists.
type Store interface {
	Save(ctx context.Context, key Key, doc *permission.FolderPermissionDocument) error
	Load(ctx context.Context, key Key) (*permission.FolderPermissionDocument, error)
	Exists(ctx context.Context, key Key) (bool, error)
}

// BlobStore holds opaque document payloads. Get returns an error wrapping
// apperrors.ErrNotFound for a missing key.
type BlobStore interface {
	Put(ctx context.Context, key Key, data []byte) error
	Get(ctx context.Context, key Key) ([]byte, error)
	Has(ctx context.Context, key Key) (bool, error)
}

// DocumentStore is a Store over a BlobStore. Payloads are JSON, sealed per
// operator when a Sealer is set.
type DocumentStore struct {
	blobs  BlobStore
	sealer *sealed.Sealer
}

// New returns a Store writing to blobs. A nil sealer stores plaintext JSON.
func New(blobs BlobStore, sealer *sealed.Sealer) *DocumentStore {
	return &DocumentStore{blobs: blobs, sealer: sealer}
}

// NewMemoryStore returns an unencrypted in-process Store.
func NewMemoryStore() *DocumentStore {
	return New(NewMemoryBlobs(), nil)
}

func (s *DocumentStore) Save(ctx context.Context, key Key, doc *permission.FolderPermissionDocument) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if doc == nil {
		return apperrors.Validation("document is required")
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf(errEncodeDocumentFmt, err)
	}
	if s.sealer != nil {
		if payload, err = s.sealer.Seal(key.OperatorID, payload); err != nil {
			return fmt.Errorf(errSealDocumentFmt, err)
		}
	}
	if err := s.blobs.Put(ctx, key, payload); err != nil {
		return fmt.Errorf(errSaveDocumentFmt, key.DocumentName(), err)
	}
	return nil
}

func (s *DocumentStore) Load(ctx context.Context, key Key) (*permission.FolderPermissionDocument, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	payload, err := s.blobs.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf(errLoadDocumentFmt, key.DocumentName(), err)
	}
	if s.sealer != nil {
		if payload, err = s.sealer.Open(key.OperatorID, payload); err != nil {
			return nil, fmt.Errorf(errOpenDocumentFmt, err)
		}
	}
	var doc permission.FolderPermissionDocument
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf(errDecodeDocumentFmt, err)
	}
	return &doc, nil
}

func (s *DocumentStore) Exists(ctx context.Context, key Key) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	return s.blobs.Has(ctx, key)
}

// SaveVerified saves doc and reads it back. A missing or different document
// fails with apperrors.ErrStoreRoundTrip.
func SaveVerified(ctx context.Context, s Store, key Key, doc *permission.FolderPermissionDocument) error {
	if err := s.Save(ctx, key, doc); err != nil {
		return err
	}
	loaded, err := s.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrStoreRoundTrip, err)
	}
	if loaded == nil {
		return apperrors.ErrStoreRoundTrip
	}
	want, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf(errEncodeDocumentFmt, err)
	}
	got, err := json.Marshal(loaded)
	if err != nil {
		return fmt.Errorf(errEncodeDocumentFmt, err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("%w: document changed in storage", apperrors.ErrStoreRoundTrip)
	}
	return nil
}
