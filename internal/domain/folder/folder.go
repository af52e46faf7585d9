package folder

import (
	"errors"
	"strings"
)

// ItemTypeFolder is the JSON:API type of folder items. File items share the
// same listing endpoints and are dropped.
const ItemTypeFolder = "folders"

var errLevel3WithoutLevel2 = errors.New("hierarchy row has level3 without level2")

// Node is one folder in the project tree.
type Node struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ObjectCount int    `json:"objectCount"`
	Hidden      bool   `json:"hidden"`
	ParentID    string `json:"parentId,omitempty"`
}

// HierarchyRow is one leaf of the three-level folder tree with its ancestors.
// Level3 is only set when Level2 is.
type HierarchyRow struct {
	Level1 Node  `json:"level1"`
	Level2 *Node `json:"level2,omitempty"`
	Level3 *Node `json:"level3,omitempty"`
}

func (r HierarchyRow) Validate() error {
	if r.Level3 != nil && r.Level2 == nil {
		return errLevel3WithoutLevel2
	}
	return nil
}

// Leaf returns the deepest folder of the row.
func (r HierarchyRow) Leaf() Node {
	switch {
	case r.Level3 != nil:
		return *r.Level3
	case r.Level2 != nil:
		return *r.Level2
	default:
		return r.Level1
	}
}

// Depth is 1, 2 or 3.
func (r HierarchyRow) Depth() int {
	switch {
	case r.Level3 != nil:
		return 3
	case r.Level2 != nil:
		return 2
	default:
		return 1
	}
}

// Path joins the folder names from the top folder down to the leaf.
func (r HierarchyRow) Path() string {
	return JoinPath(r.Level1.Name, nameOf(r.Level2), nameOf(r.Level3))
}

func nameOf(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Name
}

// JoinPath joins non-empty folder names with "/".
func JoinPath(names ...string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "/")
}
