package subject

import "fmt"

// Type is the kind of principal a folder permission is granted to.
type Type string

const (
	TypeUser    Type = "USER"
	TypeCompany Type = "COMPANY"
	TypeRole    Type = "ROLE"
)

// Types lists subject types in the order mutations are partitioned.
var Types = []Type{TypeUser, TypeCompany, TypeRole}

func (t Type) Valid() bool {
	switch t {
	case TypeUser, TypeCompany, TypeRole:
		return true
	}
	return false
}

// Ref identifies a principal by id and type.
type Ref struct {
	ID   string `json:"subjectId"`
	Type Type   `json:"subjectType"`
}

// Key is the composite "<subjectId>_<subjectType>" used to match desired
// and live grants.
type Key string

func (r Ref) Key() Key {
	return Key(r.ID + "_" + string(r.Type))
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %s", r.Type, r.ID)
}

const (
	ProductProjectAdministration = "projectAdministration"
	AccessAdministrator          = "administrator"
)

// ProjectUser is a member of a project as returned by the admin users API.
type ProjectUser struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	CompanyID   string    `json:"companyId,omitempty"`
	CompanyName string    `json:"companyName,omitempty"`
	RoleIDs     []string  `json:"roleIds,omitempty"`
	Roles       []Role    `json:"roles,omitempty"`
	Products    []Product `json:"products,omitempty"`
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	Key    string `json:"key"`
	Access string `json:"access"`
}

// IsProjectAdministrator reports whether the user administers the project.
// Such users cannot have folder permissions changed.
func (u ProjectUser) IsProjectAdministrator() bool {
	for _, p := range u.Products {
		if p.Key == ProductProjectAdministration && p.Access == AccessAdministrator {
			return true
		}
	}
	return false
}
