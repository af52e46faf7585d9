package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/acc"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/reconcile"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/metrics"
	"github.com/labstack/echo/v4"
)

type SyncHandler struct {
	runner  SyncRunner
	api     APIFactory
	metrics SyncRecorder
}

func NewSyncHandler(runner SyncRunner, api APIFactory, recorder SyncRecorder) *SyncHandler {
	return &SyncHandler{runner: runner, api: api, metrics: recorder}
}

// SyncRequest is the optional body of a sync. Without a document the saved
// one is used.
type SyncRequest struct {
	Document    *permission.FolderPermissionDocument `json:"document,omitempty"`
	FolderNames map[string]string                    `json:"folderNames,omitempty"`
}

// Sync reconciles the project's folder permissions with the operator's
// document. A sync already running for the project answers 409.
func (h *SyncHandler) Sync(c echo.Context) error {
	op, err := auth.GetOperator(c)
	if err != nil {
		return respondMapped(c, err, msgSyncFail)
	}
	token, err := auth.GetToken(c)
	if err != nil {
		return respondMapped(c, err, msgSyncFail)
	}
	hubID, err := pathParam(c, paramHubID, msgHubIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}
	projectID, err := pathParam(c, paramProjectID, msgProjectIDRequired)
	if err != nil {
		return handleHTTPError(c, err)
	}

	var req SyncRequest
	if c.Request().ContentLength > 0 {
		if err := bindStrictJSON(c, &req); err != nil {
			return handleHTTPError(c, err)
		}
	}
	if req.Document != nil {
		if err := req.Document.Validate(); err != nil {
			return respondMapped(c, err, msgSyncFail)
		}
	}

	started := time.Now()
	summary, err := h.runner.Run(c.Request().Context(), reconcile.RunRequest{
		OperatorID:  op.UserID,
		HubID:       hubID,
		ProjectID:   projectID,
		Client:      h.api(token),
		Document:    req.Document,
		FolderNames: req.FolderNames,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrSyncInProgress) {
			h.metrics.RecordSyncConflict()
			return respondError(c, http.StatusConflict, msgSyncInProgress)
		}
		if errors.Is(err, apperrors.ErrNotFound) && acc.StatusCode(err) == 0 {
			return respondError(c, http.StatusNotFound, msgNoSavedPermissions)
		}
		return respondMapped(c, err, msgSyncFail)
	}

	h.metrics.RecordSync(metrics.SyncSample{
		Created:  summary.Created,
		Updated:  summary.Updated,
		Deleted:  summary.Deleted,
		Errors:   len(summary.Errors),
		Aborted:  summary.Aborted,
		Duration: time.Since(started),
	})

	message := msgSyncDone
	switch {
	case summary.Aborted:
		message = msgSyncAborted
	case len(summary.Errors) > 0:
		message = msgSyncPartial
	}
	return respondOK(c, map[string]any{jsonKeyMessage: message, "summary": summary})
}
