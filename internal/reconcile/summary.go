package reconcile

import (
	"fmt"
	"time"
)

// FolderState is where a folder is in its fetch, diff, mutate sequence.
type FolderState string

const (
	StateNotStarted   FolderState = "NOT_STARTED"
	StateFetchingLive FolderState = "FETCHING_LIVE"
	StateDiffing      FolderState = "DIFFING"
	StateMutating     FolderState = "MUTATING"
	StateDone         FolderState = "DONE"
	StateFolderError  FolderState = "FOLDER_ERROR"
)

// FolderResult is the outcome for one folder of the document.
type FolderResult struct {
	FolderID string      `json:"folderId"`
	Name     string      `json:"name"`
	State    FolderState `json:"state"`
	Created  int         `json:"created"`
	Updated  int         `json:"updated"`
	Deleted  int         `json:"deleted"`
	Errors   int         `json:"errors"`
}

// Summary is the result of one reconciliation run. The engine does not touch
// it after returning it.
type Summary struct {
	RunID              string         `json:"runId,omitempty"`
	Created            int            `json:"created"`
	Updated            int            `json:"updated"`
	Deleted            int            `json:"deleted"`
	SkippedAdmins      int            `json:"skippedAdmins"`
	SkippedNonExistent int            `json:"skippedNonExistent"`
	Errors             []string       `json:"errors"`
	CreatedUsers       []string       `json:"createdUsers"`
	UpdatedUsers       []string       `json:"updatedUsers"`
	DeletedUsers       []string       `json:"deletedUsers"`
	NonExistentUsers   []string       `json:"nonExistentUsers"`
	Warnings           []string       `json:"warnings,omitempty"`
	Folders            []FolderResult `json:"folders"`
	Aborted            bool           `json:"aborted,omitempty"`
	AbortReason        string         `json:"abortReason,omitempty"`
	StartedAt          time.Time      `json:"startedAt"`
	FinishedAt         time.Time      `json:"finishedAt"`
}

func newSummary(total int) *Summary {
	return &Summary{
		Errors:           []string{},
		CreatedUsers:     []string{},
		UpdatedUsers:     []string{},
		DeletedUsers:     []string{},
		NonExistentUsers: []string{},
		Folders:          make([]FolderResult, 0, total),
		StartedAt:        time.Now().UTC(),
	}
}

// Changes is created + updated + deleted.
func (s *Summary) Changes() int {
	return s.Created + s.Updated + s.Deleted
}

// folderOutcome is what one folder contributes to the Summary.
type folderOutcome struct {
	result        FolderResult
	created       []string
	updated       []string
	deleted       []string
	skippedAdmins int
	nonExistent   []string
	errors        []string
	warnings      []string
}

func (o *folderOutcome) fail(msg string) {
	o.result.State = StateFolderError
	o.addError(msg)
}

func (o *folderOutcome) addError(msg string) {
	o.errors = append(o.errors, msg)
	o.result.Errors++
}

// accumulator merges folder outcomes in document order.
type accumulator struct {
	summary     *Summary
	nonExistent map[string]struct{}
	warnings    map[string]struct{}
}

func newAccumulator(total int) *accumulator {
	return &accumulator{
		summary:     newSummary(total),
		nonExistent: make(map[string]struct{}),
		warnings:    make(map[string]struct{}),
	}
}

func (a *accumulator) add(o folderOutcome) {
	s := a.summary
	s.Folders = append(s.Folders, o.result)
	s.Created += len(o.created)
	s.Updated += len(o.updated)
	s.Deleted += len(o.deleted)
	s.CreatedUsers = append(s.CreatedUsers, o.created...)
	s.UpdatedUsers = append(s.UpdatedUsers, o.updated...)
	s.DeletedUsers = append(s.DeletedUsers, o.deleted...)
	s.SkippedAdmins += o.skippedAdmins
	s.SkippedNonExistent += len(o.nonExistent)
	s.Errors = append(s.Errors, o.errors...)

	for _, name := range o.nonExistent {
		if _, seen := a.nonExistent[name]; seen {
			continue
		}
		a.nonExistent[name] = struct{}{}
		s.NonExistentUsers = append(s.NonExistentUsers, name)
	}
	for _, w := range o.warnings {
		if _, seen := a.warnings[w]; seen {
			continue
		}
		a.warnings[w] = struct{}{}
		s.Warnings = append(s.Warnings, w)
	}
}

func (a *accumulator) abort(err error) {
	a.summary.Aborted = true
	a.summary.AbortReason = err.Error()
}

func (a *accumulator) finish() *Summary {
	a.summary.FinishedAt = time.Now().UTC()
	return a.summary
}

func userInFolder(name, folderName string) string {
	return fmt.Sprintf("%s (%s)", name, folderName)
}
