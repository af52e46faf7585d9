package reconcile

import (
	"sort"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

// Grant is a subject with an action set on one folder, desired or live.
type Grant struct {
	Ref         subject.Ref
	Actions     []permission.ActionToken
	DisplayName string
}

func (g Grant) item(withActions bool) permission.MutationItem {
	it := permission.MutationItem{SubjectID: g.Ref.ID, SubjectType: g.Ref.Type}
	if withActions {
		it.Actions = g.Actions
	}
	return it
}

// Plan is the diff of one folder.
type Plan struct {
	Create        []Grant
	Update        []Grant
	Delete        []Grant
	SkippedAdmins []Grant
	NonExistent   []Grant
}

// Empty reports whether the plan issues no mutation.
func (p Plan) Empty() bool {
	return len(p.Create) == 0 && len(p.Update) == 0 && len(p.Delete) == 0
}

// Diff computes the mutations that make live equal desired.
//
// Creates and updates skip subjects that are not in the project and project
// administrators. Deletes skip administrators only, so a grant left behind by
// a user who has since left the project is still removed. Action lists are
// compared as sets.
func Diff(desired, live map[subject.Key]Grant, dir Directory) Plan {
	var plan Plan

	for _, key := range sortedKeys(desired) {
		want := desired[key]
		have, exists := live[key]
		if exists && permission.ActionsEqual(want.Actions, have.Actions) {
			continue
		}
		if !dir.Exists(want.Ref.ID, want.Ref.Type) {
			plan.NonExistent = append(plan.NonExistent, want)
			continue
		}
		if dir.IsAdministrator(want.Ref.ID, want.Ref.Type) {
			plan.SkippedAdmins = append(plan.SkippedAdmins, want)
			continue
		}
		if exists {
			plan.Update = append(plan.Update, want)
		} else {
			plan.Create = append(plan.Create, want)
		}
	}

	for _, key := range sortedKeys(live) {
		if _, wanted := desired[key]; wanted {
			continue
		}
		have := live[key]
		if dir.IsAdministrator(have.Ref.ID, have.Ref.Type) {
			plan.SkippedAdmins = append(plan.SkippedAdmins, have)
			continue
		}
		plan.Delete = append(plan.Delete, have)
	}

	return plan
}

// LiveGrants keys explicit live permissions by subject. Inherit-only entries
// are left out. Explicit grants for subject types the batch endpoints do not
// take are returned separately and never planned.
func LiveGrants(live []permission.LivePermission) (grants map[subject.Key]Grant, unsupported []permission.LivePermission) {
	grants = make(map[subject.Key]Grant, len(live))
	for _, p := range live {
		if !p.Explicit() {
			continue
		}
		if !p.SubjectType.Valid() {
			unsupported = append(unsupported, p)
			continue
		}
		grants[p.Ref().Key()] = Grant{Ref: p.Ref(), Actions: p.Actions, DisplayName: p.DisplayName()}
	}
	return grants, unsupported
}

func sortedKeys(m map[subject.Key]Grant) []subject.Key {
	keys := make([]subject.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// partition splits grants by subject type in subject.Types order, dropping
// empty groups.
func partition(grants []Grant) []typedGrants {
	var out []typedGrants
	for _, t := range subject.Types {
		var group []Grant
		for _, g := range grants {
			if g.Ref.Type == t {
				group = append(group, g)
			}
		}
		if len(group) > 0 {
			out = append(out, typedGrants{subjectType: t, grants: group})
		}
	}
	return out
}

type typedGrants struct {
	subjectType subject.Type
	grants      []Grant
}
