package handler

import (
	"log"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/directory"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/hierarchy"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/infra/cache"
	"github.com/labstack/echo/v4"
)

const usersCacheTTL = time.Minute

// BrowseHandler serves the read-only views the permission grid is built
// from: hubs, projects, the folder tree, project users and live permissions.
type BrowseHandler struct {
	api        APIFactory
	users      *cache.TTL[[]subject.ProjectUser]
	maxWorkers int
	logger     *log.Logger
}

func NewBrowseHandler(api APIFactory, users *cache.TTL[[]subject.ProjectUser], maxWorkers int, l *log.Logger) *BrowseHandler {
	if users == nil {
		users = cache.NewTTL[[]subject.ProjectUser]()
	}
	if l == nil {
		l = log.Default()
	}
	return &BrowseHandler{api: api, users: users, maxWorkers: maxWorkers, logger: l}
}

func (h *BrowseHandler) client(c echo.Context) (ProjectAPI, *auth.Operator, error) {
	op, err := auth.GetOperator(c)
	if err != nil {
		return nil, nil, err
	}
	token, err := auth.GetToken(c)
	if err != nil {
		return nil, nil, err
	}
	return h.api(token), op, nil
}

func (h *BrowseHandler) ListHubs(c echo.Context) error {
	api, _, err := h.client(c)
	if err != nil {
		return respondMapped(c, err, msgListHubsFail)
	}

	hubs, err := api.Hubs(c.Request().Context())
	if err != nil {
		return respondMapped(c, err, msgListHubsFail)
	}

	return respondOK(c, map[string]any{"hubs": hubs})
}

func (h *BrowseHandler) ListProjects(c echo.Context) error {
	hubID, err := pathParam(c, paramHubID, msgHubIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	api, _, err := h.client(c)
	if err != nil {
		return respondMapped(c, err, msgListProjectsFail)
	}

	projects, err := api.Projects(c.Request().Context(), hubID)
	if err != nil {
		return respondMapped(c, err, msgListProjectsFail)
	}

	return respondOK(c, map[string]any{"projects": projects})
}

// FolderTree returns the three-level folder hierarchy of a project.
func (h *BrowseHandler) FolderTree(c echo.Context) error {
	hubID, err := pathParam(c, paramHubID, msgHubIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	projectID, err := pathParam(c, paramProjectID, msgProjectIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	api, _, err := h.client(c)
	if err != nil {
		return respondMapped(c, err, msgFetchFoldersFail)
	}

	fetcher := hierarchy.NewFetcher(api, hierarchy.WithLogger(h.logger), hierarchy.WithMaxWorkers(h.maxWorkers))
	rows, err := fetcher.FetchHierarchy(c.Request().Context(), hubID, projectID, nil)
	if err != nil {
		return respondMapped(c, err, msgFetchFoldersFail)
	}

	return respondOK(c, map[string]any{"rows": rows, "count": len(rows)})
}

type projectUserView struct {
	subject.ProjectUser
	IsAdmin bool `json:"isAdmin"`
}

// ProjectUsers lists the members of a project with their administrator flag
// and the names that resolve to more than one subject type.
func (h *BrowseHandler) ProjectUsers(c echo.Context) error {
	projectID, err := pathParam(c, paramProjectID, msgProjectIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	api, op, err := h.client(c)
	if err != nil {
		return respondMapped(c, err, msgFetchUsersFail)
	}

	key := cache.BuildCacheKey("users", op.UserID, projectID)
	users, ok := h.users.Get(key)
	if !ok {
		users, err = api.ProjectUsers(c.Request().Context(), projectID)
		if err != nil {
			return respondMapped(c, err, msgFetchUsersFail)
		}
		h.users.Set(key, users, time.Now().Add(usersCacheTTL))
	}

	views := make([]projectUserView, len(users))
	for i, u := range users {
		views[i] = projectUserView{ProjectUser: u, IsAdmin: u.IsProjectAdministrator()}
	}
	collisions := directory.Build(users).Collisions()

	return respondOK(c, map[string]any{"users": views, "count": len(views), "collisions": collisions})
}

type livePermissionView struct {
	permission.LivePermission
	Level       int    `json:"level"`
	DisplayName string `json:"displayName"`
}

// FolderPermissions returns the explicit grants on one folder. Level is 0
// when the action set does not match any level.
func (h *BrowseHandler) FolderPermissions(c echo.Context) error {
	projectID, err := pathParam(c, paramProjectID, msgProjectIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	folderID, err := pathParam(c, paramFolderID, msgFolderIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	api, _, err := h.client(c)
	if err != nil {
		return respondMapped(c, err, msgFetchPermissionsFail)
	}

	live, err := api.GetFolderPermissions(c.Request().Context(), projectID, folderID)
	if err != nil {
		return respondMapped(c, err, msgFetchPermissionsFail)
	}

	views := make([]livePermissionView, 0, len(live))
	for _, p := range live {
		if !p.Explicit() {
			continue
		}
		views = append(views, livePermissionView{
			LivePermission: p,
			Level:          permission.ActionsToLevel(p.Actions),
			DisplayName:    p.DisplayName(),
		})
	}

	return respondOK(c, map[string]any{"permissions": views})
}

// ClearCaches drops expired cached user lists.
func (h *BrowseHandler) ClearCaches() {
	h.users.Clear()
}
