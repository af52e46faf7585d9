package handler

const (
	jsonKeySuccess = "success"
	jsonKeyMessage = "message"
	jsonKeyError   = "error"

	paramHubID     = "hubId"
	paramProjectID = "projectId"
	paramFolderID  = "folderId"
)

const (
	msgContentTypeJSONRequired = "Content-Type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgHubIDRequired           = "hubId is required"
	msgProjectIDRequired       = "projectId is required"
	msgFolderIDRequired        = "folderId is required"
	msgListHubsFail            = "failed to list hubs"
	msgListProjectsFail        = "failed to list projects"
	msgFetchFoldersFail        = "failed to fetch folder hierarchy"
	msgFetchUsersFail          = "failed to fetch project users"
	msgFetchPermissionsFail    = "failed to fetch folder permissions"
	msgSaveFail                = "failed to save folder permissions"
	msgSaveVerifyFail          = "folder permissions were not saved; please save again"
	msgSaved                   = "Folder permissions saved"
	msgLoadFail                = "failed to load folder permissions"
	msgNoSavedPermissions      = "no saved folder permissions for this project"
	msgCheckFail               = "failed to check folder permissions"
	msgSyncInProgress          = "a sync is already running for this project"
	msgSyncFail                = "folder permission sync failed"
	msgSyncDone                = "Folder permissions synced"
	msgSyncPartial             = "Folder permissions synced with errors"
	msgSyncAborted             = "Folder permission sync was cancelled"
)
