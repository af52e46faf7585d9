package acc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/permission"
	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

// GetFolderPermissions returns the grants currently set on a folder,
// including inherit-only entries with no actions.
func (c *Client) GetFolderPermissions(ctx context.Context, projectID, folderID string) ([]permission.LivePermission, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out []permission.LivePermission
	resp, err := req.
		SetPathParams(map[string]string{"projectId": AccountProjectID(projectID), "folderId": folderID}).
		SetResult(&out).
		Get(pathFolderPermissions)
	if err := checkResponse(opFolderPermissions, resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BatchCreate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return c.batch(ctx, opBatchCreate, pathBatchCreate, projectID, folderID, items)
}

func (c *Client) BatchUpdate(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	return c.batch(ctx, opBatchUpdate, pathBatchUpdate, projectID, folderID, items)
}

// BatchDelete removes grants. Actions on items are ignored.
func (c *Client) BatchDelete(ctx context.Context, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	body := make([]permission.MutationItem, len(items))
	for i, it := range items {
		body[i] = permission.MutationItem{SubjectID: it.SubjectID, SubjectType: it.SubjectType}
	}
	return c.batch(ctx, opBatchDelete, pathBatchDelete, projectID, folderID, body)
}

func (c *Client) batch(ctx context.Context, op, path, projectID, folderID string, items []permission.MutationItem) ([]permission.MutationResult, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := req.
		SetPathParams(map[string]string{"projectId": AccountProjectID(projectID), "folderId": folderID}).
		SetHeader("Content-Type", "application/json").
		SetBody(items).
		Post(path)
	if err := checkResponse(op, resp, err); err != nil {
		return nil, err
	}
	results, err := decodeBatchResults(resp.Body())
	if err != nil {
		return nil, fmt.Errorf(errDecodeFmt, op, err)
	}
	return results, nil
}

type batchItem struct {
	SubjectID   string          `json:"subjectId"`
	SubjectType subject.Type    `json:"subjectType"`
	Error       json.RawMessage `json:"error"`
}

// decodeBatchResults accepts a bare array or an object with a results array.
// An item with a non-null error field is a per-item failure.
func decodeBatchResults(body []byte) ([]permission.MutationResult, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}

	var items []batchItem
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, err
		}
	} else {
		var wrapped struct {
			Results []batchItem `json:"results"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, err
		}
		items = wrapped.Results
	}

	results := make([]permission.MutationResult, 0, len(items))
	for _, it := range items {
		r := permission.MutationResult{SubjectID: it.SubjectID, SubjectType: it.SubjectType}
		if detail, failed := errorDetail(it.Error); failed {
			r.Failed = true
			r.Detail = detail
		}
		results = append(results, r)
	}
	return results, nil
}

func errorDetail(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, s != ""
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Title   string `json:"title"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, v := range []string{obj.Detail, obj.Message, obj.Title, obj.Code} {
			if v != "" {
				return v, true
			}
		}
	}
	return string(raw), true
}
