package directory

import (
	"testing"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	"github.com/stretchr/testify/assert"
)

func projectUsers() []subject.ProjectUser {
	return []subject.ProjectUser{
		{
			ID:          "u1",
			Email:       "a@x.com",
			CompanyID:   "c1",
			CompanyName: "Acme",
			RoleIDs:     []string{"r1", "r2"},
			Roles:       []subject.Role{{ID: "r1", Name: "Architect"}, {ID: "r2", Name: "Engineer"}},
		},
		{
			ID:          "u2",
			Email:       "boss@x.com",
			CompanyID:   "c2",
			CompanyName: "Engineer",
			Products:    []subject.Product{{Key: subject.ProductProjectAdministration, Access: subject.AccessAdministrator}},
		},
		{
			ID:          "u3",
			Email:       "c@x.com",
			CompanyID:   "c1",
			CompanyName: "Acme",
			RoleIDs:     []string{"r9"},
			Roles:       []subject.Role{{ID: "r9", Name: "Architect"}},
		},
	}
}

func TestResolve(t *testing.T) {
	dir := Build(projectUsers())

	tests := []struct {
		name  string
		input string
		want  subject.Ref
		found bool
	}{
		{"email", "a@x.com", subject.Ref{ID: "u1", Type: subject.TypeUser}, true},
		{"email is case sensitive", "A@x.com", subject.Ref{}, false},
		{"company", "Acme", subject.Ref{ID: "c1", Type: subject.TypeCompany}, true},
		{"role uses first role id of first matching user", "Architect", subject.Ref{ID: "r1", Type: subject.TypeRole}, true},
		{"company wins over role", "Engineer", subject.Ref{ID: "c2", Type: subject.TypeCompany}, true},
		{"unknown", "ghost@x.com", subject.Ref{}, false},
		{"empty", "", subject.Ref{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, ok := dir.Resolve(tt.input)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, ref)
		})
	}
}

func TestResolveDetailedFlagsAmbiguity(t *testing.T) {
	dir := Build(projectUsers())

	r := dir.ResolveDetailed("Engineer")
	assert.True(t, r.Found)
	assert.True(t, r.Ambiguous)
	assert.Equal(t, []subject.Type{subject.TypeCompany, subject.TypeRole}, r.Matches)

	r = dir.ResolveDetailed("Acme")
	assert.False(t, r.Ambiguous)
}

func TestCollisions(t *testing.T) {
	dir := Build(projectUsers())
	assert.Equal(t, []Collision{{Name: "Engineer", Types: []subject.Type{subject.TypeCompany, subject.TypeRole}}}, dir.Collisions())
}

func TestExists(t *testing.T) {
	dir := Build(projectUsers())

	assert.True(t, dir.Exists("u1", subject.TypeUser))
	assert.False(t, dir.Exists("u404", subject.TypeUser))
	assert.True(t, dir.Exists("anything", subject.TypeCompany))
	assert.True(t, dir.Exists("anything", subject.TypeRole))
	assert.False(t, dir.Exists("u1", subject.Type("GROUP")))
}

func TestIsAdministrator(t *testing.T) {
	dir := Build(projectUsers())

	assert.True(t, dir.IsAdministrator("u2", subject.TypeUser))
	assert.False(t, dir.IsAdministrator("u1", subject.TypeUser))
	assert.False(t, dir.IsAdministrator("u2", subject.TypeCompany))
	assert.False(t, dir.IsAdministrator("u404", subject.TypeUser))
}

func TestDisplayName(t *testing.T) {
	dir := Build(projectUsers())

	assert.Equal(t, "a@x.com", dir.DisplayName(subject.Ref{ID: "u1", Type: subject.TypeUser}))
	assert.Equal(t, "Acme", dir.DisplayName(subject.Ref{ID: "c1", Type: subject.TypeCompany}))
	assert.Equal(t, "Engineer", dir.DisplayName(subject.Ref{ID: "r2", Type: subject.TypeRole}))
	assert.Equal(t, "zzz", dir.DisplayName(subject.Ref{ID: "zzz", Type: subject.TypeRole}))
	assert.Equal(t, 3, dir.Users())
}
