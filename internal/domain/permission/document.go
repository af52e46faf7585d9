package permission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/folder"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
)

// Level is a permission level as the operator entered it. Integral values
// encode as JSON numbers; anything else is kept verbatim as a string so an
// invalid cell survives a save and load unchanged and is coerced at sync time.
type Level string

// LevelOf returns the Level for n.
func LevelOf(n int) Level {
	return Level(strconv.Itoa(n))
}

// Int parses the level. See ParseLevel.
func (l Level) Int() (int, error) {
	return ParseLevel(string(l))
}

func (l Level) MarshalJSON() ([]byte, error) {
	if n, err := strconv.Atoi(string(l)); err == nil && strconv.Itoa(n) == string(l) {
		return []byte(l), nil
	}
	return json.Marshal(string(l))
}

func (l *Level) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*l = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Level(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("level: %w", err)
		}
		*l = Level(n.String())
	}
	return nil
}

// DesiredPermission is one cell of the operator's permission grid. Name is the
// e-mail, company name or role name typed into the grid; the subject fields are
// set when the grid already carried a resolved subject.
type DesiredPermission struct {
	SubjectID   string       `json:"subjectId,omitempty"`
	SubjectType subject.Type `json:"subjectType,omitempty"`
	Name        string       `json:"name"`
	Level       Level        `json:"level"`
}

// Ref returns the pre-resolved subject, if the cell carries one.
func (p DesiredPermission) Ref() (subject.Ref, bool) {
	if p.SubjectID == "" || !p.SubjectType.Valid() {
		return subject.Ref{}, false
	}
	return subject.Ref{ID: p.SubjectID, Type: p.SubjectType}, true
}

func (p DesiredPermission) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.SubjectID
}

// FolderEntry is one row of the grid: a folder and the permissions wanted on it,
// keyed by grid column.
type FolderEntry struct {
	FolderID    string                       `json:"folderId"`
	Level1      string                       `json:"level1"`
	Level2      string                       `json:"level2,omitempty"`
	Level3      string                       `json:"level3,omitempty"`
	Permissions map[string]DesiredPermission `json:"permissions"`
}

// Path is the folder's display path.
func (e FolderEntry) Path() string {
	return folder.JoinPath(e.Level1, e.Level2, e.Level3)
}

// ColumnKeys returns the permission column keys in sorted order.
func (e FolderEntry) ColumnKeys() []string {
	keys := make([]string, 0, len(e.Permissions))
	for k := range e.Permissions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FolderPermissionDocument is the operator's desired state for one project.
// It is saved and loaded wholesale.
type FolderPermissionDocument struct {
	ProjectName string        `json:"projectName"`
	ProjectID   string        `json:"projectId"`
	HubID       string        `json:"hubId"`
	ExportDate  string        `json:"exportDate"`
	Folders     []FolderEntry `json:"folders"`
}

// Validate checks the document shape. Levels are not checked here.
func (d *FolderPermissionDocument) Validate() error {
	if d.HubID == "" {
		return apperrors.Validation("hubId is required")
	}
	if d.ProjectID == "" {
		return apperrors.Validation("projectId is required")
	}
	seen := make(map[string]struct{}, len(d.Folders))
	for i, f := range d.Folders {
		if f.FolderID == "" {
			return apperrors.Validation(fmt.Sprintf("folders[%d].folderId is required", i))
		}
		if _, dup := seen[f.FolderID]; dup {
			return apperrors.Validation(fmt.Sprintf("folder %s appears more than once", f.FolderID))
		}
		seen[f.FolderID] = struct{}{}
	}
	return nil
}

// InvalidLevels lists "<folder path>: <column>" for every cell whose level
// would be coerced at sync time.
func (d *FolderPermissionDocument) InvalidLevels() []string {
	var out []string
	for _, f := range d.Folders {
		for _, key := range f.ColumnKeys() {
			if _, err := f.Permissions[key].Level.Int(); err != nil {
				out = append(out, f.Path()+": "+key)
			}
		}
	}
	return out
}
