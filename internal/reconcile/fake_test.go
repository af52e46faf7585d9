package reconcile

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/directory"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

var errUpstream = errors.New("upstream returned 500")

// fakeProject holds live folder permissions and applies batch calls to them.
type fakeProject struct {
	mu    sync.Mutex
	live  map[string]map[subject.Key]permission.LivePermission
	users []subject.ProjectUser
	calls []RecordedCall

	fetchErr  map[string]error
	callErr   map[string]error // "<op> <TYPE>"
	itemFail  map[subject.Key]string
	usersErr  error
	onFetch   func(folderID string)
	fetchSeen []string
}

func newFakeProject(users ...subject.ProjectUser) *fakeProject {
	return &fakeProject{
		live:     make(map[string]map[subject.Key]permission.LivePermission),
		users:    users,
		fetchErr: make(map[string]error),
		callErr:  make(map[string]error),
		itemFail: make(map[subject.Key]string),
	}
}

func (f *fakeProject) seed(folderID string, perms ...permission.LivePermission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.live[folderID]
	if m == nil {
		m = make(map[subject.Key]permission.LivePermission)
		f.live[folderID] = m
	}
	for _, p := range perms {
		m[p.Ref().Key()] = p
	}
}

func (f *fakeProject) ProjectUsers(ctx context.Context, projectID string) ([]subject.ProjectUser, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeProject) GetFolderPermissions(ctx context.Context, projectID, folderID string) ([]permission.LivePermission, error) {
	if f.onFetch != nil {
		f.onFetch(folderID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchSeen = append(f.fetchSeen, folderID)
	if err := f.fetchErr[folderID]; err != nil {
		return nil, err
	}
	out := make([]permission.LivePermission, 0, len(f.live[folderID]))
	for _, p := range f.live[folderID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func (f *fakeProject) BatchCreate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return f.apply("create", folderID, items)
}

func (f *fakeProject) BatchUpdate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return f.apply("update", folderID, items)
}

func (f *fakeProject) BatchDelete(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return f.apply("delete", folderID, items)
}

func (f *fakeProject) apply(op, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]permission.MutationItem, len(items))
	copy(cp, items)
	f.calls = append(f.calls, RecordedCall{Operation: op, FolderID: folderID, Items: cp})

	if len(items) > 0 {
		if err := f.callErr[op+" "+string(items[0].SubjectType)]; err != nil {
			return nil, err
		}
	}

	m := f.live[folderID]
	if m == nil {
		m = make(map[subject.Key]permission.LivePermission)
		f.live[folderID] = m
	}
	results := make([]permission.MutationResult, len(items))
	for i, it := range items {
		results[i] = permission.MutationResult{SubjectID: it.SubjectID, SubjectType: it.SubjectType}
		if detail, bad := f.itemFail[it.Ref().Key()]; bad {
			results[i].Failed = true
			results[i].Detail = detail
			continue
		}
		switch op {
		case "delete":
			delete(m, it.Ref().Key())
		default:
			m[it.Ref().Key()] = permission.LivePermission{SubjectID: it.SubjectID, SubjectType: it.SubjectType, Actions: it.Actions}
		}
	}
	return results, nil
}

func (f *fakeProject) callsFor(op string) []RecordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RecordedCall
	for _, c := range f.calls {
		if c.Operation == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeProject) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var (
	alice = subject.ProjectUser{ID: "u1", Email: "a@x.com", Name: "Alice", CompanyID: "c1", CompanyName: "Acme", RoleIDs: []string{"r1"}, Roles: []subject.Role{{ID: "r1", Name: "Engineer"}}}
	bob   = subject.ProjectUser{ID: "u2", Email: "b@x.com", Name: "Bob"}
	admin = subject.ProjectUser{ID: "u9", Email: "boss@x.com", Name: "Boss", Products: []subject.Product{{Key: subject.ProductProjectAdministration, Access: subject.AccessAdministrator}}}
)

func quietEngine() *Engine {
	return NewEngine(log.New(io.Discard, "", 0))
}

func cell(name string, level int) permission.DesiredPermission {
	return permission.DesiredPermission{Name: name, Level: permission.LevelOf(level)}
}

func docWith(folders ...permission.FolderEntry) *permission.FolderPermissionDocument {
	return &permission.FolderPermissionDocument{ProjectName: "Tower", ProjectID: "p1", HubID: "b.h1", Folders: folders}
}

func entry(id, name string, cells ...permission.DesiredPermission) permission.FolderEntry {
	perms := make(map[string]permission.DesiredPermission, len(cells))
	for i, c := range cells {
		perms[string(rune('A'+i))] = c
	}
	return permission.FolderEntry{FolderID: id, Level1: name, Permissions: perms}
}

func livePerm(id string, t subject.Type, level int) permission.LivePermission {
	actions, _ := permission.LevelToActions(level)
	return permission.LivePermission{SubjectID: id, SubjectType: t, Actions: actions}
}

func dirOf(users ...subject.ProjectUser) *directory.Directory {
	return directory.Build(users)
}
