package store

const (
	s3KeyPrefix    = "folder-permissions"
	s3ObjectSuffix = ".age"
	s3ContentType  = "application/octet-stream"

	errEncodeDocumentFmt = "failed to encode document: %w"
	errDecodeDocumentFmt = "failed to decode document: %w"
	errSealDocumentFmt   = "failed to encrypt document: %w"
	errOpenDocumentFmt   = "failed to decrypt document: %w"
	errSaveDocumentFmt   = "failed to save document %s: %w"
	errLoadDocumentFmt   = "failed to load document %s: %w"

	errFailedUpsertDocumentFmt = "failed to upsert document: %w"
	errFailedGetDocumentFmt    = "failed to get document: %w"
	errFailedCheckDocumentFmt  = "failed to check document: %w"
	errFailedCreateSchemaFmt   = "failed to create documents table: %w"
)
