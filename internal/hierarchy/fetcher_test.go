package hierarchy

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/folder"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	tops     []folder.Node
	topErr   error
	children map[string][]folder.Node
	failing  map[string]bool
	calls    []string
	topIDs   map[string]bool
	topsDone int
	barrier  bool
}

func (f *fakeSource) TopFolders(ctx context.Context, hubID, projectID string) ([]folder.Node, error) {
	return f.tops, f.topErr
}

func (f *fakeSource) FolderContents(ctx context.Context, projectID, folderID string) ([]folder.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, folderID)
	if f.topIDs[folderID] {
		f.topsDone++
	} else if f.topsDone != len(f.tops) {
		f.barrier = false
	}
	if f.failing[folderID] {
		return nil, errors.New("404")
	}
	return f.children[folderID], nil
}

func node(id, name string) folder.Node {
	return folder.Node{ID: id, Name: name}
}

func newFakeSource() *fakeSource {
	src := &fakeSource{
		tops: []folder.Node{node("A", "Project Files"), node("B", "Plans"), node("C", "Empty")},
		children: map[string][]folder.Node{
			"A":  {node("A1", "Design"), node("A2", "Site")},
			"B":  {node("B1", "Level 1")},
			"A1": {node("A1a", "Structural"), node("A1b", "MEP")},
			"B1": {node("B1a", "Sheets")},
		},
		failing: map[string]bool{},
		barrier: true,
	}
	src.topIDs = map[string]bool{"A": true, "B": true, "C": true}
	return src
}

func quietFetcher(src FolderSource, opts ...Option) *Fetcher {
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	return NewFetcher(src, opts...)
}

func TestFetchHierarchyRows(t *testing.T) {
	src := newFakeSource()

	rows, err := quietFetcher(src).FetchHierarchy(context.Background(), "h1", "p1", nil)
	require.NoError(t, err)

	var paths []string
	for _, r := range rows {
		require.NoError(t, r.Validate())
		paths = append(paths, r.Path())
	}
	assert.Equal(t, []string{
		"Project Files/Design/Structural",
		"Project Files/Design/MEP",
		"Project Files/Site",
		"Plans/Level 1/Sheets",
		"Empty",
	}, paths)
	assert.True(t, src.barrier, "level-3 listing started before level-2 finished")
}

func TestFetchHierarchyChildFailureIsEmpty(t *testing.T) {
	src := newFakeSource()
	src.failing["A1"] = true

	rows, err := quietFetcher(src).FetchHierarchy(context.Background(), "h1", "p1", nil)
	require.NoError(t, err)

	var leaves []string
	for _, r := range rows {
		leaves = append(leaves, r.Leaf().ID)
	}
	assert.Equal(t, []string{"A1", "A2", "B1a", "C"}, leaves)
}

func TestFetchHierarchyTopFailure(t *testing.T) {
	src := newFakeSource()
	src.topErr = apperrors.ErrNetwork

	_, err := quietFetcher(src).FetchHierarchy(context.Background(), "h1", "p1", nil)
	assert.True(t, errors.Is(err, apperrors.ErrNetwork))
}

func TestFetchHierarchyProgressIsMonotonic(t *testing.T) {
	var (
		mu       sync.Mutex
		percents []int
		phases   = map[Phase]int{}
	)
	progress := func(percent int, phase Phase) {
		mu.Lock()
		defer mu.Unlock()
		percents = append(percents, percent)
		phases[phase] = percent
	}

	_, err := quietFetcher(newFakeSource(), WithMaxWorkers(2)).FetchHierarchy(context.Background(), "h1", "p1", progress)
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	assert.Equal(t, 0, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
	assert.Equal(t, 10, phases[PhaseTopFolders])
	assert.Equal(t, 50, phases[PhaseLevel2])
	assert.Equal(t, 90, phases[PhaseLevel3])
	assert.Equal(t, 100, phases[PhaseAssemble])
}

func TestFetchHierarchyNoTopFolders(t *testing.T) {
	src := &fakeSource{}
	var last int
	rows, err := quietFetcher(src).FetchHierarchy(context.Background(), "h1", "p1", func(p int, _ Phase) { last = p })
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 100, last)
}

func TestFetchHierarchyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietFetcher(newFakeSource()).FetchHierarchy(ctx, "h1", "p1", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex(t *testing.T) {
	rows, err := quietFetcher(newFakeSource()).FetchHierarchy(context.Background(), "h1", "p1", nil)
	require.NoError(t, err)

	idx := Index(rows)
	assert.Equal(t, "Project Files", idx["A"])
	assert.Equal(t, "Project Files/Design", idx["A1"])
	assert.Equal(t, "Project Files/Design/MEP", idx["A1b"])
	assert.Equal(t, "Empty", idx["C"])
}

func TestFetcherWorkerCap(t *testing.T) {
	assert.Equal(t, defaultMaxWorkers, quietFetcher(newFakeSource()).maxWorkers)
	assert.Equal(t, defaultMaxWorkers, quietFetcher(newFakeSource(), WithMaxWorkers(0)).maxWorkers)
	assert.Equal(t, 3, quietFetcher(newFakeSource(), WithMaxWorkers(3)).maxWorkers)
}
