package handler

import (
	"errors"
	"net/http"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/auth"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/store"
	apperrors "github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/pkg/errors"
	"github.com/labstack/echo/v4"
)

// DocumentHandler saves and loads the operator's desired-state documents.
// Every document is scoped to the authenticated operator.
type DocumentHandler struct {
	docs store.Store
}

func NewDocumentHandler(docs store.Store) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// Save overwrites the stored document for the body's hub and project and
// reads it back before answering. Levels that would be coerced at sync time
// are reported but accepted.
func (h *DocumentHandler) Save(c echo.Context) error {
	op, err := auth.GetOperator(c)
	if err != nil {
		return respondMapped(c, err, msgSaveFail)
	}

	var doc permission.FolderPermissionDocument
	if err := bindStrictJSON(c, &doc); err != nil {
		return handleHTTPError(c, err)
	}
	if err := doc.Validate(); err != nil {
		return respondMapped(c, err, msgSaveFail)
	}

	key := store.Key{OperatorID: op.UserID, HubID: doc.HubID, ProjectID: doc.ProjectID}
	if err := store.SaveVerified(c.Request().Context(), h.docs, key, &doc); err != nil {
		if errors.Is(err, apperrors.ErrStoreRoundTrip) {
			c.Logger().Errorf("save %s: %v", key.DocumentName(), err)
			return respondError(c, http.StatusInternalServerError, msgSaveVerifyFail)
		}
		return respondMapped(c, err, msgSaveFail)
	}

	invalid := doc.InvalidLevels()
	if invalid == nil {
		invalid = []string{}
	}
	return respondOK(c, map[string]any{
		jsonKeyMessage:  msgSaved,
		"folders":       len(doc.Folders),
		"invalidLevels": invalid,
	})
}

func (h *DocumentHandler) Load(c echo.Context) error {
	key, err := h.key(c)
	if err != nil {
		return handleHTTPError(c, err)
	}

	doc, err := h.docs.Load(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return respondError(c, http.StatusNotFound, msgNoSavedPermissions)
		}
		return respondMapped(c, err, msgLoadFail)
	}

	return respondOK(c, map[string]any{"data": doc})
}

func (h *DocumentHandler) Check(c echo.Context) error {
	key, err := h.key(c)
	if err != nil {
		return handleHTTPError(c, err)
	}

	exists, err := h.docs.Exists(c.Request().Context(), key)
	if err != nil {
		return respondMapped(c, err, msgCheckFail)
	}

	return respondOK(c, map[string]any{"exists": exists})
}

func (h *DocumentHandler) key(c echo.Context) (store.Key, error) {
	op, err := auth.GetOperator(c)
	if err != nil {
		return store.Key{}, echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	hubID, err := pathParam(c, paramHubID, msgHubIDRequired)
	if err != nil {
		return store.Key{}, err
	}
	projectID, err := pathParam(c, paramProjectID, msgProjectIDRequired)
	if err != nil {
		return store.Key{}, err
	}
	key := store.Key{OperatorID: op.UserID, HubID: hubID, ProjectID: projectID}
	if err := key.Validate(); err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return store.Key{}, echo.NewHTTPError(http.StatusBadRequest, appErr.Message)
		}
		return store.Key{}, echo.NewHTTPError(http.StatusBadRequest, msgInvalidRequestBody)
	}
	return key, nil
}
