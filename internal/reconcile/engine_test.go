package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileCreatesMissingGrant(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	creates := api.callsFor("create")
	require.Len(t, creates, 1)
	assert.Equal(t, "f1", creates[0].FolderID)
	assert.Equal(t, []permission.MutationItem{{
		SubjectID:   "u1",
		SubjectType: subject.TypeUser,
		Actions:     []permission.ActionToken{permission.ActionView, permission.ActionDownload, permission.ActionCollaborate},
	}}, creates[0].Items)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, []string{"a@x.com (Plans)"}, summary.CreatedUsers)
	assert.Equal(t, StateDone, summary.Folders[0].State)
}

func TestReconcileUpdatesChangedLevel(t *testing.T) {
	api := newFakeProject(alice)
	api.seed("f1", permission.LivePermission{SubjectID: "u1", SubjectType: subject.TypeUser, Actions: []permission.ActionToken{"VIEW", "COLLABORATE"}})
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 3)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	updates := api.callsFor("update")
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Items, 1)
	assert.Equal(t, []permission.ActionToken{"VIEW", "DOWNLOAD", "COLLABORATE", "PUBLISH_MARKUP"}, updates[0].Items[0].Actions)
	assert.Empty(t, api.callsFor("create"))
	assert.Equal(t, 1, summary.Updated)
}

func TestReconcileDeletesUndesiredGrant(t *testing.T) {
	api := newFakeProject(alice, bob)
	api.seed("f1", livePerm("u2", subject.TypeUser, 2))
	doc := docWith(entry("f1", "Plans"))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice, bob), api, Options{})
	require.NoError(t, err)

	deletes := api.callsFor("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, []permission.MutationItem{{SubjectID: "u2", SubjectType: subject.TypeUser}}, deletes[0].Items)
	assert.Equal(t, 1, summary.Deleted)
}

func TestReconcileSkipsUnknownName(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(
		entry("f1", "Plans", cell("ghost@x.com", 2)),
		entry("f2", "Docs", cell("ghost@x.com", 4)),
	)

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Zero(t, api.totalCalls())
	assert.Equal(t, []string{"ghost@x.com"}, summary.NonExistentUsers)
	assert.Equal(t, 2, summary.SkippedNonExistent)
	assert.Empty(t, summary.Errors)
}

func TestReconcileNeverTouchesAdministrators(t *testing.T) {
	t.Run("desired grant is skipped", func(t *testing.T) {
		api := newFakeProject(admin)
		doc := docWith(entry("f1", "Plans", cell("boss@x.com", 6)))

		summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(admin), api, Options{})
		require.NoError(t, err)
		assert.Zero(t, api.totalCalls())
		assert.Equal(t, 1, summary.SkippedAdmins)
		assert.Zero(t, summary.Created)
	})

	t.Run("live grant is kept", func(t *testing.T) {
		api := newFakeProject(admin)
		api.seed("f1", livePerm("u9", subject.TypeUser, 6))
		doc := docWith(entry("f1", "Plans"))

		summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(admin), api, Options{})
		require.NoError(t, err)
		assert.Empty(t, api.callsFor("delete"))
		assert.Equal(t, 1, summary.SkippedAdmins)
	})

	t.Run("different level is not updated", func(t *testing.T) {
		api := newFakeProject(admin)
		api.seed("f1", livePerm("u9", subject.TypeUser, 6))
		doc := docWith(entry("f1", "Plans", cell("boss@x.com", 1)))

		_, err := quietEngine().Reconcile(context.Background(), doc, dirOf(admin), api, Options{})
		require.NoError(t, err)
		assert.Zero(t, api.totalCalls())
	})
}

func TestReconcileSubjectsOutsideProject(t *testing.T) {
	api := newFakeProject(alice)
	api.seed("f1", livePerm("u7", subject.TypeUser, 3))
	doc := docWith(entry("f1", "Plans", permission.DesiredPermission{SubjectID: "u8", SubjectType: subject.TypeUser, Level: permission.LevelOf(2)}))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Empty(t, api.callsFor("create"))
	deletes := api.callsFor("delete")
	require.Len(t, deletes, 1)
	assert.Equal(t, "u7", deletes[0].Items[0].SubjectID)
	assert.Equal(t, 1, summary.SkippedNonExistent)
	assert.Equal(t, []string{"u8"}, summary.NonExistentUsers)
}

func TestReconcileIgnoresActionOrder(t *testing.T) {
	api := newFakeProject(alice)
	api.seed("f1", permission.LivePermission{
		SubjectID:   "u1",
		SubjectType: subject.TypeUser,
		Actions:     []permission.ActionToken{"PUBLISH_MARKUP", "COLLABORATE", "DOWNLOAD", "VIEW"},
	})
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 3)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)
	assert.Zero(t, api.totalCalls())
	assert.Zero(t, summary.Changes())
}

func TestReconcileIgnoresRepeatedLiveActions(t *testing.T) {
	api := newFakeProject(alice)
	api.seed("f1", permission.LivePermission{SubjectID: "u1", SubjectType: subject.TypeUser, Actions: []permission.ActionToken{"VIEW", "COLLABORATE", "VIEW"}})
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 1)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Zero(t, api.totalCalls())
	assert.Zero(t, summary.Updated)
}

func TestReconcileLeavesUnsupportedSubjectTypes(t *testing.T) {
	api := newFakeProject(alice)
	group := permission.LivePermission{SubjectID: "g1", SubjectType: subject.Type("GROUP"), Name: "Reviewers", Actions: []permission.ActionToken{"VIEW", "COLLABORATE"}}
	api.seed("f1", group)
	doc := docWith(entry("f1", "Plans"))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Zero(t, api.totalCalls())
	assert.Zero(t, summary.Deleted)
	assert.Empty(t, summary.Errors)
	assert.Equal(t, []string{"Plans: left GROUP Reviewers unchanged: unsupported subject type"}, summary.Warnings)
}

func TestReconcileSkipsEmptyCells(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(entry("f1", "Plans", permission.DesiredPermission{}, permission.DesiredPermission{Name: "  ", Level: "2"}, cell("a@x.com", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Created)
	assert.Zero(t, summary.SkippedNonExistent)
	assert.Empty(t, summary.NonExistentUsers)
}

func TestReconcileIsIdempotent(t *testing.T) {
	api := newFakeProject(alice, bob, admin)
	api.seed("f1", livePerm("u2", subject.TypeUser, 1), livePerm("u9", subject.TypeUser, 6))
	api.seed("f2", permission.LivePermission{SubjectID: "u1", SubjectType: subject.TypeUser, Actions: []permission.ActionToken{"VIEW", "COLLABORATE"}})
	doc := docWith(
		entry("f1", "Plans", cell("a@x.com", 2), cell("Acme", 3), cell("Engineer", 5)),
		entry("f2", "Docs", cell("a@x.com", 4), cell("ghost@x.com", 2)),
		entry("f3", "Archive", cell("b@x.com", 6)),
	)
	dir := dirOf(alice, bob, admin)

	first, err := quietEngine().Reconcile(context.Background(), doc, dir, api, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, first.Created)
	assert.Equal(t, 1, first.Updated)
	assert.Equal(t, 1, first.Deleted)

	before := api.totalCalls()
	second, err := quietEngine().Reconcile(context.Background(), doc, dir, api, Options{})
	require.NoError(t, err)
	assert.Zero(t, second.Created)
	assert.Zero(t, second.Updated)
	assert.Zero(t, second.Deleted)
	assert.Equal(t, before, api.totalCalls())
}

func TestReconcilePartitionsBySubjectType(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(entry("f1", "Plans", cell("Engineer", 2), cell("Acme", 2), cell("a@x.com", 2)))

	_, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	creates := api.callsFor("create")
	require.Len(t, creates, 3)
	for i, want := range subject.Types {
		require.Len(t, creates[i].Items, 1)
		assert.Equal(t, want, creates[i].Items[0].SubjectType)
	}
}

func TestReconcileRecordsFailedPartition(t *testing.T) {
	api := newFakeProject(alice)
	api.callErr["create COMPANY"] = errUpstream
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 2), cell("Acme", 2), cell("Engineer", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Plans: create COMPANY failed"}, summary.Errors)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, StateDone, summary.Folders[0].State)
	assert.Equal(t, 1, summary.Folders[0].Errors)
	assert.Len(t, api.callsFor("create"), 3)
}

func TestReconcileRecordsFailedItem(t *testing.T) {
	api := newFakeProject(alice, bob)
	api.itemFail[subject.Ref{ID: "u1", Type: subject.TypeUser}.Key()] = "insufficient access"
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 2), cell("b@x.com", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice, bob), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Plans: create USER a@x.com failed: insufficient access"}, summary.Errors)
	assert.Equal(t, 1, summary.Created)
	assert.Equal(t, []string{"b@x.com (Plans)"}, summary.CreatedUsers)
}

func TestReconcileContinuesAfterFetchFailure(t *testing.T) {
	api := newFakeProject(alice)
	api.fetchErr["f2"] = errUpstream
	doc := docWith(
		entry("f1", "Plans", cell("a@x.com", 2)),
		entry("f2", "Docs", cell("a@x.com", 2)),
		entry("f3", "Archive", cell("a@x.com", 2)),
	)

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"Docs: failed to fetch permissions"}, summary.Errors)
	assert.Equal(t, 2, summary.Created)
	require.Len(t, summary.Folders, 3)
	assert.Equal(t, StateDone, summary.Folders[0].State)
	assert.Equal(t, StateFolderError, summary.Folders[1].State)
	assert.Equal(t, StateDone, summary.Folders[2].State)
}

func TestReconcileCoercesInvalidLevel(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(entry("f1", "Plans", permission.DesiredPermission{Name: "a@x.com", Level: "admin"}))

	_, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{})
	require.NoError(t, err)

	creates := api.callsFor("create")
	require.Len(t, creates, 1)
	want, _ := permission.LevelToActions(permission.DefaultLevel)
	assert.Equal(t, want, creates[0].Items[0].Actions)
}

func TestReconcileWarnsOnAmbiguousName(t *testing.T) {
	carol := subject.ProjectUser{ID: "u3", Email: "c@x.com", CompanyID: "c2", CompanyName: "Engineer"}
	api := newFakeProject(alice, carol)
	doc := docWith(entry("f1", "Plans", cell("Engineer", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice, carol), api, Options{})
	require.NoError(t, err)

	creates := api.callsFor("create")
	require.Len(t, creates, 1)
	assert.Equal(t, subject.Ref{ID: "c2", Type: subject.TypeCompany}, creates[0].Items[0].Ref())
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "COMPANY, ROLE")
}

func TestReconcileRunsInBoundedBatches(t *testing.T) {
	api := newFakeProject(alice)
	var inflight, peak int32
	api.onFetch = func(string) {
		n := atomic.AddInt32(&inflight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inflight, -1)
	}

	var folders []permission.FolderEntry
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		folders = append(folders, entry("f"+id, "Folder "+id, cell("a@x.com", 1)))
	}

	var mu sync.Mutex
	var progress [][2]int
	summary, err := quietEngine().Reconcile(context.Background(), docWith(folders...), dirOf(alice), api, Options{
		Concurrency: 5,
		Progress: func(processed, total int, phase Phase) {
			mu.Lock()
			defer mu.Unlock()
			assert.Equal(t, PhaseSync, phase)
			progress = append(progress, [2]int{processed, total})
		},
	})
	require.NoError(t, err)

	assert.Equal(t, [][2]int{{5, 12}, {10, 12}, {12, 12}}, progress)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
	require.Len(t, summary.Folders, 12)
	for i, f := range summary.Folders {
		assert.Equal(t, folders[i].FolderID, f.FolderID)
	}
	assert.Equal(t, 12, summary.Created)
}

func TestReconcileStopsSchedulingWhenCancelled(t *testing.T) {
	api := newFakeProject(alice)
	var folders []permission.FolderEntry
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		folders = append(folders, entry("f"+id, "Folder "+id, cell("a@x.com", 1)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	summary, err := quietEngine().Reconcile(ctx, docWith(folders...), dirOf(alice), api, Options{
		Concurrency: 5,
		Progress:    func(int, int, Phase) { cancel() },
	})
	require.NoError(t, err)

	assert.True(t, summary.Aborted)
	assert.NotEmpty(t, summary.AbortReason)
	assert.Equal(t, 5, summary.Created)
	require.Len(t, summary.Folders, 8)
	for _, f := range summary.Folders[5:] {
		assert.Equal(t, StateNotStarted, f.State)
	}
	assert.Len(t, api.fetchSeen, 5)
}

func TestReconcileUsesFolderNameOverride(t *testing.T) {
	api := newFakeProject(alice)
	doc := docWith(entry("f1", "Plans", cell("a@x.com", 2)))

	summary, err := quietEngine().Reconcile(context.Background(), doc, dirOf(alice), api, Options{
		FolderNames: map[string]string{"f1": "Project Files/Plans"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@x.com (Project Files/Plans)"}, summary.CreatedUsers)
}

func TestReconcileRejectsMissingInputs(t *testing.T) {
	_, err := quietEngine().Reconcile(context.Background(), nil, dirOf(), newFakeProject(), Options{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = quietEngine().Reconcile(context.Background(), docWith(), nil, newFakeProject(), Options{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestReconcileEmptyDocument(t *testing.T) {
	summary, err := quietEngine().Reconcile(context.Background(), docWith(), dirOf(alice), newFakeProject(alice), Options{})
	require.NoError(t, err)
	assert.Zero(t, summary.Changes())
	assert.NotNil(t, summary.Errors)
	assert.NotNil(t, summary.Folders)
	assert.False(t, summary.Aborted)
}
