// Package directory resolves the names an operator types into the permission
// grid to API subjects, using the project's user list.
package directory

import (
	"sort"
	"strings"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

// Resolution is the typed result of resolving a name. Ambiguous is set when
// the name also matches a lower-priority namespace; the higher-priority match
// still wins.
type Resolution struct {
	Ref       subject.Ref
	Found     bool
	Ambiguous bool
	Matches   []subject.Type
}

// Collision is a name that exists in more than one subject namespace.
type Collision struct {
	Name  string         `json:"name"`
	Types []subject.Type `json:"types"`
}

// Directory is an immutable index over one project's users.
type Directory struct {
	byEmail   map[string]subject.ProjectUser
	byCompany map[string]string
	byRole    map[string]string
	users     map[string]subject.ProjectUser
	names     map[subject.Key]string
}

// Build indexes users. For duplicated emails, company names and role names the
// first occurrence wins.
func Build(users []subject.ProjectUser) *Directory {
	d := &Directory{
		byEmail:   make(map[string]subject.ProjectUser, len(users)),
		byCompany: make(map[string]string),
		byRole:    make(map[string]string),
		users:     make(map[string]subject.ProjectUser, len(users)),
		names:     make(map[subject.Key]string, len(users)),
	}

	for _, u := range users {
		if _, ok := d.users[u.ID]; !ok {
			d.users[u.ID] = u
		}
		if u.Email != "" {
			if _, ok := d.byEmail[u.Email]; !ok {
				d.byEmail[u.Email] = u
			}
		}
		d.setName(subject.Ref{ID: u.ID, Type: subject.TypeUser}, firstNonEmpty(u.Email, u.Name, u.ID))

		if u.CompanyName != "" && u.CompanyID != "" {
			if _, ok := d.byCompany[u.CompanyName]; !ok {
				d.byCompany[u.CompanyName] = u.CompanyID
			}
			d.setName(subject.Ref{ID: u.CompanyID, Type: subject.TypeCompany}, u.CompanyName)
		}

		if len(u.RoleIDs) == 0 {
			continue
		}
		for _, r := range u.Roles {
			if r.Name == "" {
				continue
			}
			if _, ok := d.byRole[r.Name]; !ok {
				d.byRole[r.Name] = u.RoleIDs[0]
			}
			if r.ID != "" {
				d.setName(subject.Ref{ID: r.ID, Type: subject.TypeRole}, r.Name)
			}
		}
		if len(u.Roles) > 0 {
			d.setName(subject.Ref{ID: u.RoleIDs[0], Type: subject.TypeRole}, u.Roles[0].Name)
		}
	}
	return d
}

func (d *Directory) setName(ref subject.Ref, name string) {
	if _, ok := d.names[ref.Key()]; !ok && name != "" {
		d.names[ref.Key()] = name
	}
}

// Resolve maps a name to a subject: exact e-mail when the name contains "@",
// otherwise company name, otherwise role name (the role's subject id is the
// matching user's first role id). Matching is case-sensitive.
func (d *Directory) Resolve(name string) (subject.Ref, bool) {
	r := d.ResolveDetailed(name)
	return r.Ref, r.Found
}

func (d *Directory) ResolveDetailed(name string) Resolution {
	var res Resolution

	if strings.Contains(name, "@") {
		if u, ok := d.byEmail[name]; ok {
			res.Matches = append(res.Matches, subject.TypeUser)
			res.Ref = subject.Ref{ID: u.ID, Type: subject.TypeUser}
			res.Found = true
		}
	}
	if id, ok := d.byCompany[name]; ok {
		res.Matches = append(res.Matches, subject.TypeCompany)
		if !res.Found {
			res.Ref = subject.Ref{ID: id, Type: subject.TypeCompany}
			res.Found = true
		}
	}
	if id, ok := d.byRole[name]; ok {
		res.Matches = append(res.Matches, subject.TypeRole)
		if !res.Found {
			res.Ref = subject.Ref{ID: id, Type: subject.TypeRole}
			res.Found = true
		}
	}

	res.Ambiguous = len(res.Matches) > 1
	return res
}

// Exists reports whether a subject can receive a grant. Companies and roles
// cannot be checked against the user list and always exist.
func (d *Directory) Exists(subjectID string, subjectType subject.Type) bool {
	switch subjectType {
	case subject.TypeCompany, subject.TypeRole:
		return true
	case subject.TypeUser:
		_, ok := d.users[subjectID]
		return ok
	}
	return false
}

// IsAdministrator reports whether subjectID is a USER holding the project
// administration product.
func (d *Directory) IsAdministrator(subjectID string, subjectType subject.Type) bool {
	if subjectType != subject.TypeUser {
		return false
	}
	u, ok := d.users[subjectID]
	return ok && u.IsProjectAdministrator()
}

// DisplayName returns the e-mail, company name or role name for ref, or the
// subject id when the directory does not know it.
func (d *Directory) DisplayName(ref subject.Ref) string {
	if name, ok := d.names[ref.Key()]; ok {
		return name
	}
	return ref.ID
}

// Collisions lists names that resolve in more than one namespace, sorted by name.
func (d *Directory) Collisions() []Collision {
	seen := make(map[string]struct{}, len(d.byEmail)+len(d.byCompany)+len(d.byRole))
	var out []Collision
	check := func(name string) {
		if _, ok := seen[name]; ok {
			return
		}
		seen[name] = struct{}{}
		if r := d.ResolveDetailed(name); r.Ambiguous {
			out = append(out, Collision{Name: name, Types: r.Matches})
		}
	}
	for name := range d.byEmail {
		check(name)
	}
	for name := range d.byCompany {
		check(name)
	}
	for name := range d.byRole {
		check(name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Users returns the number of distinct users indexed.
func (d *Directory) Users() int {
	return len(d.users)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
