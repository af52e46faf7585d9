// Package reconcile makes the folder permissions of a project match the
// operator's desired-state document.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/directory"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
)

const DefaultConcurrency = 5

// Directory answers subject questions for one project. *directory.Directory
// satisfies it.
type Directory interface {
	Resolve(name string) (subject.Ref, bool)
	Exists(subjectID string, subjectType subject.Type) bool
	IsAdministrator(subjectID string, subjectType subject.Type) bool
}

// detailedResolver is implemented by directories that can flag names matching
// several subject types.
type detailedResolver interface {
	ResolveDetailed(name string) directory.Resolution
}

// LiveReader reads the explicit grants of a folder.
type LiveReader interface {
	GetFolderPermissions(ctx context.Context, projectID, folderID string) ([]permission.LivePermission, error)
}

// MutationClient reads and changes folder permissions. *acc.Client satisfies it.
type MutationClient interface {
	LiveReader
	BatchCreate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error)
	BatchUpdate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error)
	BatchDelete(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error)
}

type Phase string

const PhaseSync Phase = "sync"

// ProgressFunc is called after each batch of folders with the number of
// folders processed so far.
type ProgressFunc func(processed, total int, phase Phase)

type Options struct {
	// Concurrency is the number of folders processed at once. Defaults to 5.
	Concurrency int
	Progress    ProgressFunc
	// FolderNames overrides the display name of folders by id.
	FolderNames map[string]string
}

type Engine struct {
	logger *log.Logger
}

func NewEngine(l *log.Logger) *Engine {
	if l == nil {
		l = log.Default()
	}
	return &Engine{logger: l}
}

// Reconcile processes the folders of doc in sequential batches of
// opts.Concurrency; folders within a batch run concurrently. A folder that
// fails is recorded and the run continues. When ctx is cancelled no further
// batch is started and the summary is marked aborted. The returned error is
// only non-nil for a document that cannot be processed at all.
func (e *Engine) Reconcile(ctx context.Context, doc *permission.FolderPermissionDocument, dir Directory, client MutationClient, opts Options) (*Summary, error) {
	if doc == nil {
		return nil, apperrors.Validation("no desired-state document")
	}
	if dir == nil || client == nil {
		return nil, apperrors.Validation("directory and client are required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	total := len(doc.Folders)
	acc := newAccumulator(total)

	for start := 0; start < total; start += concurrency {
		if err := ctx.Err(); err != nil {
			acc.abort(err)
			for _, entry := range doc.Folders[start:] {
				acc.add(folderOutcome{result: FolderResult{FolderID: entry.FolderID, Name: e.folderName(entry, opts), State: StateNotStarted}})
			}
			e.logger.Printf("reconcile: project %s aborted after %d of %d folders: %v", doc.ProjectID, start, total, err)
			break
		}

		end := start + concurrency
		if end > total {
			end = total
		}
		outcomes := make([]folderOutcome, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(slot int, entry permission.FolderEntry) {
				defer wg.Done()
				outcomes[slot] = e.reconcileFolder(ctx, doc.ProjectID, entry, dir, client, e.folderName(entry, opts))
			}(i-start, doc.Folders[i])
		}
		wg.Wait()

		for _, o := range outcomes {
			acc.add(o)
		}
		if opts.Progress != nil {
			opts.Progress(end, total, PhaseSync)
		}
	}

	summary := acc.finish()
	e.logger.Printf("reconcile: project %s done: created=%d updated=%d deleted=%d skippedAdmins=%d skippedNonExistent=%d errors=%d",
		doc.ProjectID, summary.Created, summary.Updated, summary.Deleted, summary.SkippedAdmins, summary.SkippedNonExistent, len(summary.Errors))
	return summary, nil
}

func (e *Engine) folderName(entry permission.FolderEntry, opts Options) string {
	if name, ok := opts.FolderNames[entry.FolderID]; ok && name != "" {
		return name
	}
	if p := entry.Path(); p != "" {
		return p
	}
	return entry.FolderID
}

func (e *Engine) reconcileFolder(ctx context.Context, projectID string, entry permission.FolderEntry, dir Directory, client MutationClient, name string) (out folderOutcome) {
	out.result = FolderResult{FolderID: entry.FolderID, Name: name, State: StateFetchingLive}
	defer func() {
		if r := recover(); r != nil {
			out.fail(fmt.Sprintf("%s: internal error: %v", name, r))
			e.logger.Printf("reconcile: folder %s panicked: %v", entry.FolderID, r)
		}
	}()

	live, err := client.GetFolderPermissions(ctx, projectID, entry.FolderID)
	if err != nil {
		out.fail(fmt.Sprintf("%s: failed to fetch permissions", name))
		e.logger.Printf("reconcile: folder %s: fetch permissions: %s", entry.FolderID, logger.SanitizeLogMessage(err.Error()))
		return out
	}

	out.result.State = StateDiffing
	desired := e.desiredGrants(entry, dir, name, &out)
	liveGrants, unsupported := LiveGrants(live)
	for _, p := range unsupported {
		out.warnings = append(out.warnings, fmt.Sprintf("%s: left %s %s unchanged: unsupported subject type", name, p.SubjectType, p.DisplayName()))
		e.logger.Printf("reconcile: folder %s: skipping live grant with subject type %q", entry.FolderID, p.SubjectType)
	}
	plan := Diff(desired, liveGrants, dir)
	out.skippedAdmins = len(plan.SkippedAdmins)
	for _, g := range plan.NonExistent {
		out.nonExistent = append(out.nonExistent, g.DisplayName)
	}

	out.result.State = StateMutating
	e.apply(ctx, projectID, entry.FolderID, name, plan, client, &out)
	out.result.State = StateDone
	return out
}

// desiredGrants resolves the grid cells of entry. Cells whose name does not
// resolve are recorded as non-existent; invalid levels become level 1.
func (e *Engine) desiredGrants(entry permission.FolderEntry, dir Directory, folderName string, out *folderOutcome) map[subject.Key]Grant {
	desired := make(map[subject.Key]Grant, len(entry.Permissions))
	detailed, canDetail := dir.(detailedResolver)

	for _, column := range entry.ColumnKeys() {
		cell := entry.Permissions[column]
		if strings.TrimSpace(cell.Name) == "" && cell.SubjectID == "" {
			continue
		}
		display := cell.DisplayName()

		ref, ok := cell.Ref()
		if !ok {
			if canDetail {
				res := detailed.ResolveDetailed(cell.Name)
				ref, ok = res.Ref, res.Found
				if res.Ambiguous {
					out.warnings = append(out.warnings, fmt.Sprintf("%q matches %s; using %s", cell.Name, joinTypes(res.Matches), res.Ref.Type))
				}
			} else {
				ref, ok = dir.Resolve(cell.Name)
			}
		}
		if !ok {
			out.nonExistent = append(out.nonExistent, display)
			continue
		}

		level, coerced := permission.CoerceLevel(cell.Level)
		if coerced {
			e.logger.Printf("reconcile: folder %s: invalid level %q for %s, using %d", folderName, string(cell.Level), display, level)
		}
		actions, err := permission.LevelToActions(level)
		if err != nil {
			actions, _ = permission.LevelToActions(permission.DefaultLevel)
		}
		desired[ref.Key()] = Grant{Ref: ref, Actions: actions, DisplayName: display}
	}
	return desired
}

type mutation struct {
	name        string
	grants      []Grant
	withActions bool
	call        func(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error)
	done        *[]string
	count       *int
}

// apply issues one batch call per operation and subject type.
func (e *Engine) apply(ctx context.Context, projectID, folderID, folderName string, plan Plan, client MutationClient, out *folderOutcome) {
	ops := []mutation{
		{name: "create", grants: plan.Create, withActions: true, call: client.BatchCreate, done: &out.created, count: &out.result.Created},
		{name: "update", grants: plan.Update, withActions: true, call: client.BatchUpdate, done: &out.updated, count: &out.result.Updated},
		{name: "delete", grants: plan.Delete, withActions: false, call: client.BatchDelete, done: &out.deleted, count: &out.result.Deleted},
	}

	for _, op := range ops {
		for _, part := range partition(op.grants) {
			items := make([]permission.MutationItem, len(part.grants))
			for i, g := range part.grants {
				items[i] = g.item(op.withActions)
			}

			results, err := op.call(ctx, projectID, folderID, items)
			if err != nil {
				out.addError(fmt.Sprintf("%s: %s %s failed", folderName, op.name, part.subjectType))
				e.logger.Printf("reconcile: folder %s: %s %s (%d items): %s",
					folderID, op.name, part.subjectType, len(items), logger.SanitizeLogMessage(err.Error()))
				continue
			}

			failed := make(map[subject.Key]string)
			for _, r := range results {
				if r.Failed {
					failed[r.Ref().Key()] = r.Detail
				}
			}
			for _, g := range part.grants {
				if detail, bad := failed[g.Ref.Key()]; bad {
					out.addError(fmt.Sprintf("%s: %s %s %s failed: %s", folderName, op.name, part.subjectType, g.DisplayName, detail))
					continue
				}
				*op.done = append(*op.done, userInFolder(g.DisplayName, folderName))
				*op.count++
			}
		}
	}
}

func joinTypes(types []subject.Type) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}
