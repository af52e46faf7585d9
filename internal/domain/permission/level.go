package permission

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
)

// ActionToken is one fine-grained folder action understood by the permissions API.
type ActionToken string

const (
	ActionView          ActionToken = "VIEW"
	ActionDownload      ActionToken = "DOWNLOAD"
	ActionCollaborate   ActionToken = "COLLABORATE"
	ActionPublishMarkup ActionToken = "PUBLISH_MARKUP"
	ActionPublish       ActionToken = "PUBLISH"
	ActionEdit          ActionToken = "EDIT"
	ActionControl       ActionToken = "CONTROL"
)

const (
	MinLevel     = 1
	MaxLevel     = 6
	DefaultLevel = MinLevel
)

// levelActions is indexed by level. Each row is a superset of the previous one;
// level 4 puts PUBLISH first, which is the order the API echoes back.
var levelActions = [MaxLevel + 1][]ActionToken{
	1: {ActionView, ActionCollaborate},
	2: {ActionView, ActionDownload, ActionCollaborate},
	3: {ActionView, ActionDownload, ActionCollaborate, ActionPublishMarkup},
	4: {ActionPublish, ActionView, ActionDownload, ActionCollaborate, ActionPublishMarkup},
	5: {ActionPublish, ActionView, ActionDownload, ActionCollaborate, ActionPublishMarkup, ActionEdit},
	6: {ActionPublish, ActionView, ActionDownload, ActionCollaborate, ActionPublishMarkup, ActionEdit, ActionControl},
}

// LevelToActions returns a fresh copy of the action set for level.
func LevelToActions(level int) ([]ActionToken, error) {
	if level < MinLevel || level > MaxLevel {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, level)
	}
	out := make([]ActionToken, len(levelActions[level]))
	copy(out, levelActions[level])
	return out, nil
}

// ParseLevel accepts the shapes a level takes in a stored document: JSON
// numbers, numeric strings and Level values.
func ParseLevel(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != math.Trunc(t) {
			return 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidLevel, t)
		}
		n = int(t)
	case json.Number:
		return ParseLevel(string(t))
	case Level:
		return ParseLevel(string(t))
	case string:
		s := strings.TrimSpace(t)
		i, err := strconv.Atoi(s)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return 0, fmt.Errorf("%w: %q", apperrors.ErrInvalidLevel, t)
			}
			return ParseLevel(f)
		}
		n = i
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", apperrors.ErrInvalidLevel, v)
	}
	if n < MinLevel || n > MaxLevel {
		return 0, fmt.Errorf("%w: %d", apperrors.ErrInvalidLevel, n)
	}
	return n, nil
}

// CoerceLevel parses v and falls back to DefaultLevel. coerced reports
// whether the fallback was taken so the caller can log it.
func CoerceLevel(v any) (level int, coerced bool) {
	n, err := ParseLevel(v)
	if err != nil {
		return DefaultLevel, true
	}
	return n, false
}

// SortedActions returns an alphabetically sorted copy.
func SortedActions(actions []ActionToken) []ActionToken {
	out := make([]ActionToken, len(actions))
	copy(out, actions)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActionsEqual compares two action lists as sets. Repeated tokens count once.
func ActionsEqual(a, b []ActionToken) bool {
	sa, sb := actionSet(a), actionSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for t := range sa {
		if _, ok := sb[t]; !ok {
			return false
		}
	}
	return true
}

func actionSet(actions []ActionToken) map[ActionToken]struct{} {
	set := make(map[ActionToken]struct{}, len(actions))
	for _, t := range actions {
		set[t] = struct{}{}
	}
	return set
}

// ActionsToLevel returns the level whose action set equals actions, or 0 when
// the set is not one the level table produces.
func ActionsToLevel(actions []ActionToken) int {
	for level := MaxLevel; level >= MinLevel; level-- {
		if ActionsEqual(levelActions[level], actions) {
			return level
		}
	}
	return 0
}
