package acc

const (
	DefaultBaseURL       = "https://developer.api.autodesk.com"
	DefaultUsersPageSize = 200
	folderPageLimit      = 200
	maxPages             = 100
	maxErrorBody         = 512

	pathHubs              = "/project/v1/hubs"
	pathProjects          = "/project/v1/hubs/{hubId}/projects"
	pathTopFolders        = "/project/v1/hubs/{hubId}/projects/{projectId}/topFolders"
	pathFolderContents    = "/data/v1/projects/{projectId}/folders/{folderId}/contents"
	pathProjectUsers      = "/construction/admin/v1/projects/{projectId}/users"
	pathFolderPermissions = "/bim360/docs/v1/projects/{projectId}/folders/{folderId}/permissions"
	pathBatchCreate       = pathFolderPermissions + ":batch-create"
	pathBatchUpdate       = pathFolderPermissions + ":batch-update"
	pathBatchDelete       = pathFolderPermissions + ":batch-delete"
	pathMe                = "/userprofile/v1/users/@me"

	opHubs              = "list hubs"
	opProjects          = "list projects"
	opTopFolders        = "list top folders"
	opFolderContents    = "list folder contents"
	opProjectUsers      = "list project users"
	opFolderPermissions = "get folder permissions"
	opBatchCreate       = "batch-create permissions"
	opBatchUpdate       = "batch-update permissions"
	opBatchDelete       = "batch-delete permissions"
	opMe                = "get user profile"

	errTransportFmt = "%s: %w: %v"
	errDecodeFmt    = "%s: decode response: %w"
)
