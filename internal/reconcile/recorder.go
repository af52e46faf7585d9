package reconcile

import (
	"context"
	"sync"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

// RecordedCall is a batch call captured by a Recorder.
type RecordedCall struct {
	Operation string                    `json:"operation"`
	FolderID  string                    `json:"folderId"`
	Items     []permission.MutationItem `json:"items"`
}

// Recorder is a MutationClient for dry runs: live permissions come from the
// wrapped reader, batch calls are recorded and reported as successful.
type Recorder struct {
	live  LiveReader
	mu    sync.Mutex
	calls []RecordedCall
}

// NewRecorder wraps live. A nil reader yields folders with no permissions.
func NewRecorder(live LiveReader) *Recorder {
	return &Recorder{live: live}
}

func (r *Recorder) GetFolderPermissions(ctx context.Context, projectID, folderID string) ([]permission.LivePermission, error) {
	if r.live == nil {
		return nil, nil
	}
	return r.live.GetFolderPermissions(ctx, projectID, folderID)
}

func (r *Recorder) BatchCreate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return r.record("create", folderID, items), nil
}

func (r *Recorder) BatchUpdate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return r.record("update", folderID, items), nil
}

func (r *Recorder) BatchDelete(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return r.record("delete", folderID, items), nil
}

func (r *Recorder) record(op, folderID string, items []permission.MutationItem) []permission.MutationResult {
	cp := make([]permission.MutationItem, len(items))
	copy(cp, items)

	r.mu.Lock()
	r.calls = append(r.calls, RecordedCall{Operation: op, FolderID: folderID, Items: cp})
	r.mu.Unlock()

	results := make([]permission.MutationResult, len(items))
	for i, it := range items {
		results[i] = permission.MutationResult{SubjectID: it.SubjectID, SubjectType: it.SubjectType}
	}
	return results
}

// Calls returns the recorded calls in the order they were made.
func (r *Recorder) Calls() []RecordedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedCall, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor filters Calls by operation and subject type.
func (r *Recorder) CallsFor(op string, t subject.Type) []RecordedCall {
	var out []RecordedCall
	for _, c := range r.Calls() {
		if c.Operation == op && len(c.Items) > 0 && c.Items[0].SubjectType == t {
			out = append(out, c)
		}
	}
	return out
}

// dryRunClient reads users and live permissions from a real client and
// records every change instead of sending it.
type dryRunClient struct {
	*Recorder
	users ProjectClient
}

func (d dryRunClient) ProjectUsers(ctx context.Context, projectID string) ([]subject.ProjectUser, error) {
	return d.users.ProjectUsers(ctx, projectID)
}

// DryRun wraps client for a run that changes nothing. The returned Recorder
// holds the batch calls the run would have made.
func DryRun(client ProjectClient) (ProjectClient, *Recorder) {
	rec := NewRecorder(client)
	return dryRunClient{Recorder: rec, users: client}, rec
}
