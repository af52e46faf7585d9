package handler

import (
	"context"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/hierarchy"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/metrics"
)

// Consumer-side interfaces defined by handlers
// Each interface contains only the methods needed by the specific handler

// ProjectAPI is the Autodesk API surface bound to one caller's token.
// *acc.Client satisfies it.
type ProjectAPI interface {
	Hubs(ctx context.Context) ([]acc.Hub, error)
	Projects(ctx context.Context, hubID string) ([]acc.Project, error)
	hierarchy.FolderSource
	reconcile.ProjectClient
}

// APIFactory binds the API client to a bearer token.
type APIFactory func(token string) ProjectAPI

// SyncRunner runs one reconciliation. *reconcile.Service satisfies it.
type SyncRunner interface {
	Run(ctx context.Context, req reconcile.RunRequest) (*reconcile.Summary, error)
}

// SyncRecorder receives sync outcomes. *metrics.Metrics satisfies it.
type SyncRecorder interface {
	RecordSync(s metrics.SyncSample)
	RecordSyncConflict()
}
