// Package hierarchy builds the three-level folder tree of a project.
package hierarchy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/folder"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/logger"
)

const defaultMaxWorkers = 10

// FolderSource lists folders. *acc.Client satisfies it.
type FolderSource interface {
	TopFolders(ctx context.Context, hubID, projectID string) ([]folder.Node, error)
	FolderContents(ctx context.Context, projectID, folderID string) ([]folder.Node, error)
}

type Phase string

const (
	PhaseTopFolders Phase = "top_folders"
	PhaseLevel2     Phase = "level2"
	PhaseLevel3     Phase = "level3"
	PhaseAssemble   Phase = "assemble"
)

// ProgressFunc receives a percentage in [0,100]. Successive calls never
// decrease. Phase boundaries are 10, 50, 90 and 100.
type ProgressFunc func(percent int, phase Phase)

type span struct {
	phase    Phase
	from, to int
}

func (s span) at(done, total int) int {
	if total == 0 {
		return s.to
	}
	return s.from + (s.to-s.from)*done/total
}

var (
	spanTop    = span{PhaseTopFolders, 0, 10}
	spanLevel2 = span{PhaseLevel2, 10, 50}
	spanLevel3 = span{PhaseLevel3, 50, 90}
)

// Fetcher fetches the folder tree. Top folders are fetched once; children
// of all top folders are then fetched concurrently, and only after every
// level-2 listing is in are the level-3 listings started.
type Fetcher struct {
	source     FolderSource
	logger     *log.Logger
	maxWorkers int
}

type Option func(*Fetcher)

// WithLogger sets the logger used for skipped child listings.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithMaxWorkers bounds concurrent child listings per level.
func WithMaxWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxWorkers = n
		}
	}
}

func NewFetcher(source FolderSource, opts ...Option) *Fetcher {
	f := &Fetcher{source: source, logger: log.Default(), maxWorkers: defaultMaxWorkers}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchHierarchy returns one row per leaf folder, ordered by top folder and
// then by listing order. It fails only when the top-folder listing fails or
// ctx is cancelled; a child listing that fails counts as having no children.
func (f *Fetcher) FetchHierarchy(ctx context.Context, hubID, projectID string, progress ProgressFunc) ([]folder.HierarchyRow, error) {
	tracker := &progressTracker{fn: progress}
	tracker.report(0, PhaseTopFolders)

	tops, err := f.source.TopFolders(ctx, hubID, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetch top folders: %w", err)
	}
	tracker.report(spanTop.to, PhaseTopFolders)

	level2 := f.fetchChildren(ctx, projectID, tops, spanLevel2, tracker)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var mids []folder.Node
	for _, children := range level2 {
		mids = append(mids, children...)
	}
	level3 := f.fetchChildren(ctx, projectID, mids, spanLevel3, tracker)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := assemble(tops, level2, level3)
	tracker.report(100, PhaseAssemble)
	return rows, nil
}

func (f *Fetcher) fetchChildren(ctx context.Context, projectID string, parents []folder.Node, s span, tracker *progressTracker) [][]folder.Node {
	children := make([][]folder.Node, len(parents))
	if len(parents) == 0 {
		tracker.report(s.to, s.phase)
		return children
	}

	type job struct {
		index  int
		parent folder.Node
	}
	jobs := make(chan job, len(parents))
	var (
		wg   sync.WaitGroup
		done int32
	)

	workers := f.maxWorkers
	if workers > len(parents) {
		workers = len(parents)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				children[j.index] = f.fetchOne(ctx, projectID, j.parent)
				n := atomic.AddInt32(&done, 1)
				tracker.report(s.at(int(n), len(parents)), s.phase)
			}
		}()
	}

	for i, p := range parents {
		jobs <- job{index: i, parent: p}
	}
	close(jobs)
	wg.Wait()
	return children
}

func (f *Fetcher) fetchOne(ctx context.Context, projectID string, parent folder.Node) (nodes []folder.Node) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Printf("hierarchy: listing %s panicked: %v", parent.ID, r)
			nodes = nil
		}
	}()

	if ctx.Err() != nil {
		return nil
	}
	nodes, err := f.source.FolderContents(ctx, projectID, parent.ID)
	if err != nil {
		f.logger.Printf("hierarchy: children of %q (%s) unavailable, treating as empty: %s",
			parent.Name, parent.ID, logger.SanitizeLogMessage(err.Error()))
		return nil
	}
	return nodes
}

func assemble(tops []folder.Node, level2, level3 [][]folder.Node) []folder.HierarchyRow {
	var rows []folder.HierarchyRow
	midIndex := 0
	for i, top := range tops {
		if len(level2[i]) == 0 {
			rows = append(rows, folder.HierarchyRow{Level1: top})
			continue
		}
		for _, mid := range level2[i] {
			mid := mid
			leaves := level3[midIndex]
			midIndex++
			if len(leaves) == 0 {
				rows = append(rows, folder.HierarchyRow{Level1: top, Level2: &mid})
				continue
			}
			for _, leaf := range leaves {
				leaf := leaf
				rows = append(rows, folder.HierarchyRow{Level1: top, Level2: &mid, Level3: &leaf})
			}
		}
	}
	return rows
}

// Index maps every folder id in rows to its display path.
func Index(rows []folder.HierarchyRow) map[string]string {
	idx := make(map[string]string, len(rows))
	for _, r := range rows {
		idx[r.Level1.ID] = r.Level1.Name
		if r.Level2 != nil {
			idx[r.Level2.ID] = folder.JoinPath(r.Level1.Name, r.Level2.Name)
		}
		if r.Level3 != nil {
			idx[r.Level3.ID] = r.Path()
		}
	}
	return idx
}

type progressTracker struct {
	mu   sync.Mutex
	fn   ProgressFunc
	last int
}

func (p *progressTracker) report(percent int, phase Phase) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	p.fn(percent, phase)
}
