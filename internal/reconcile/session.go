package reconcile

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/directory"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/google/uuid"
)

const auditTimeout = 5 * time.Second

// Guard admits at most one run per key. Acquire fails with an error wrapping
// apperrors.ErrSyncInProgress when the key is held.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// DocumentLoader loads the desired-state document of a project.
type DocumentLoader interface {
	Load(ctx context.Context, key store.Key) (*permission.FolderPermissionDocument, error)
}

// ProjectClient is the API surface a run needs.
type ProjectClient interface {
	MutationClient
	ProjectUsers(ctx context.Context, projectID string) ([]subject.ProjectUser, error)
}

// Auditor records finished runs. Failures are the auditor's to log.
type Auditor interface {
	RecordRun(ctx context.Context, run RunRecord)
}

// RunRecord describes one run for the audit trail. Summary is nil when the
// run failed before reconciling.
type RunRecord struct {
	ID         uuid.UUID
	OperatorID string
	HubID      string
	ProjectID  string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    *Summary
	Err        error
}

// RunRequest starts a run for one operator and project. Document, when set,
// is used instead of the stored document.
type RunRequest struct {
	OperatorID  string
	HubID       string
	ProjectID   string
	Client      ProjectClient
	Document    *permission.FolderPermissionDocument
	Progress    ProgressFunc
	FolderNames map[string]string
}

func (r RunRequest) key() store.Key {
	return store.Key{OperatorID: r.OperatorID, HubID: r.HubID, ProjectID: r.ProjectID}
}

// Session is the state of a single run. It is built by Service.Run and
// dropped when the run returns.
type Session struct {
	ID        uuid.UUID
	Key       store.Key
	Document  *permission.FolderPermissionDocument
	Directory *directory.Directory
	StartedAt time.Time
}

// Service runs reconciliations end to end: guard, load, directory, engine,
// audit.
type Service struct {
	engine      *Engine
	docs        DocumentLoader
	guard       Guard
	auditor     Auditor
	concurrency int
	logger      *log.Logger
}

type ServiceOption func(*Service)

func WithAuditor(a Auditor) ServiceOption {
	return func(s *Service) { s.auditor = a }
}

func WithConcurrency(n int) ServiceOption {
	return func(s *Service) { s.concurrency = n }
}

func WithServiceLogger(l *log.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func NewService(engine *Engine, docs DocumentLoader, guard Guard, opts ...ServiceOption) *Service {
	s := &Service{
		engine:      engine,
		docs:        docs,
		guard:       guard,
		concurrency: DefaultConcurrency,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GuardKey is the key a run for hubID/projectID holds.
func GuardKey(hubID, projectID string) string {
	return "sync:" + hubID + "_" + strings.TrimPrefix(projectID, "b.")
}

// Run reconciles one project. It is rejected with ErrSyncInProgress while
// another run for the same project holds the guard. Failing to load the
// document or the project users aborts the run with an error; everything
// after that is folder-scoped and lands in the summary.
func (s *Service) Run(ctx context.Context, req RunRequest) (*Summary, error) {
	if req.HubID == "" || req.ProjectID == "" {
		return nil, apperrors.Validation("hubId and projectId are required")
	}
	if req.Client == nil {
		return nil, apperrors.Validation("no API client for run")
	}

	release, err := s.guard.Acquire(ctx, GuardKey(req.HubID, req.ProjectID))
	if err != nil {
		return nil, err
	}
	defer release()

	sess := &Session{ID: uuid.New(), Key: req.key(), StartedAt: time.Now().UTC()}
	summary, err := s.run(ctx, sess, req)
	s.audit(ctx, sess, summary, err)
	return summary, err
}

func (s *Service) run(ctx context.Context, sess *Session, req RunRequest) (*Summary, error) {
	sess.Document = req.Document
	if sess.Document == nil {
		if s.docs == nil {
			return nil, apperrors.Validation("no document store configured")
		}
		doc, err := s.docs.Load(ctx, sess.Key)
		if err != nil {
			return nil, fmt.Errorf("load desired state: %w", err)
		}
		sess.Document = doc
	}
	if !sameProject(sess.Document.ProjectID, req.ProjectID) {
		return nil, apperrors.Validation(fmt.Sprintf("document is for project %s, not %s", sess.Document.ProjectID, req.ProjectID))
	}

	users, err := req.Client.ProjectUsers(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("fetch project users: %w", err)
	}
	sess.Directory = directory.Build(users)
	if c := sess.Directory.Collisions(); len(c) > 0 {
		s.logger.Printf("reconcile: run %s: %d names match more than one subject type", sess.ID, len(c))
	}

	summary, err := s.engine.Reconcile(ctx, sess.Document, sess.Directory, req.Client, Options{
		Concurrency: s.concurrency,
		Progress:    req.Progress,
		FolderNames: req.FolderNames,
	})
	if err != nil {
		return nil, err
	}
	summary.RunID = sess.ID.String()
	return summary, nil
}

func (s *Service) audit(ctx context.Context, sess *Session, summary *Summary, runErr error) {
	if s.auditor == nil {
		return
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()
	s.auditor.RecordRun(actx, RunRecord{
		ID:         sess.ID,
		OperatorID: sess.Key.OperatorID,
		HubID:      sess.Key.HubID,
		ProjectID:  sess.Key.ProjectID,
		StartedAt:  sess.StartedAt,
		FinishedAt: time.Now().UTC(),
		Summary:    summary,
		Err:        runErr,
	})
}

func sameProject(a, b string) bool {
	return strings.TrimPrefix(a, "b.") == strings.TrimPrefix(b, "b.")
}
