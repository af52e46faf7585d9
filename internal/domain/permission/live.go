package permission

import "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"

// LivePermission is an explicit grant currently set on a folder.
type LivePermission struct {
	SubjectID      string        `json:"subjectId"`
	SubjectType    subject.Type  `json:"subjectType"`
	AutodeskID     string        `json:"autodeskId,omitempty"`
	Name           string        `json:"name,omitempty"`
	Email          string        `json:"email,omitempty"`
	Actions        []ActionToken `json:"actions"`
	InheritActions []ActionToken `json:"inheritActions,omitempty"`
}

func (p LivePermission) Ref() subject.Ref {
	return subject.Ref{ID: p.SubjectID, Type: p.SubjectType}
}

func (p LivePermission) DisplayName() string {
	switch {
	case p.Email != "":
		return p.Email
	case p.Name != "":
		return p.Name
	default:
		return p.SubjectID
	}
}

// Explicit reports whether the grant carries its own actions. A grant with no
// actions only inherits from the parent folder.
func (p LivePermission) Explicit() bool {
	return len(p.Actions) > 0
}

// MutationItem is one element of a batch create, update or delete body.
// Actions is empty for deletes.
type MutationItem struct {
	SubjectID   string        `json:"subjectId"`
	SubjectType subject.Type  `json:"subjectType"`
	Actions     []ActionToken `json:"actions,omitempty"`
}

func (m MutationItem) Ref() subject.Ref {
	return subject.Ref{ID: m.SubjectID, Type: m.SubjectType}
}

// MutationResult is the per-item outcome of a batch call.
type MutationResult struct {
	SubjectID   string       `json:"subjectId"`
	SubjectType subject.Type `json:"subjectType"`
	Failed      bool         `json:"failed,omitempty"`
	Detail      string       `json:"detail,omitempty"`
}

func (m MutationResult) Ref() subject.Ref {
	return subject.Ref{ID: m.SubjectID, Type: m.SubjectType}
}
