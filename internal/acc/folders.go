package acc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/folder"
)

type Hub struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
	Type   string `json:"type,omitempty"`
}

type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type jsonAPIItem struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
		ObjectCount int    `json:"objectCount"`
		Hidden      bool   `json:"hidden"`
		Region      string `json:"region"`
		Extension   struct {
			Type string `json:"type"`
		} `json:"extension"`
	} `json:"attributes"`
}

func (it jsonAPIItem) name() string {
	if it.Attributes.DisplayName != "" {
		return it.Attributes.DisplayName
	}
	return it.Attributes.Name
}

type jsonAPIList struct {
	Data  []jsonAPIItem `json:"data"`
	Links struct {
		Next json.RawMessage `json:"next"`
	} `json:"links"`
}

// hasNext reports whether links.next is present. The APIs send either an
// object with href or a bare string.
func (l jsonAPIList) hasNext() bool {
	if len(l.Links.Next) == 0 || string(l.Links.Next) == "null" {
		return false
	}
	var link struct {
		Href string `json:"href"`
	}
	if err := json.Unmarshal(l.Links.Next, &link); err == nil {
		return link.Href != ""
	}
	var href string
	if err := json.Unmarshal(l.Links.Next, &href); err == nil {
		return href != ""
	}
	return false
}

// Hubs lists the hubs the caller can access.
func (c *Client) Hubs(ctx context.Context) ([]Hub, error) {
	items, err := c.listAll(ctx, opHubs, pathHubs, nil)
	if err != nil {
		return nil, err
	}
	hubs := make([]Hub, 0, len(items))
	for _, it := range items {
		hubs = append(hubs, Hub{ID: it.ID, Name: it.name(), Region: it.Attributes.Region, Type: it.Attributes.Extension.Type})
	}
	return hubs, nil
}

// Projects lists the projects of a hub.
func (c *Client) Projects(ctx context.Context, hubID string) ([]Project, error) {
	items, err := c.listAll(ctx, opProjects, pathProjects, map[string]string{"hubId": hubID})
	if err != nil {
		return nil, err
	}
	projects := make([]Project, 0, len(items))
	for _, it := range items {
		projects = append(projects, Project{ID: it.ID, Name: it.name(), Type: it.Attributes.Extension.Type})
	}
	return projects, nil
}

// TopFolders lists the top-level folders of a project the caller can see.
func (c *Client) TopFolders(ctx context.Context, hubID, projectID string) ([]folder.Node, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out jsonAPIList
	resp, err := req.
		SetPathParams(map[string]string{"hubId": hubID, "projectId": DataProjectID(projectID)}).
		SetResult(&out).
		Get(pathTopFolders)
	if err := checkResponse(opTopFolders, resp, err); err != nil {
		return nil, err
	}
	return foldersOf(out.Data, ""), nil
}

// FolderContents lists the sub-folders of folderID. File items are dropped.
func (c *Client) FolderContents(ctx context.Context, projectID, folderID string) ([]folder.Node, error) {
	items, err := c.listAll(ctx, opFolderContents, pathFolderContents, map[string]string{
		"projectId": DataProjectID(projectID),
		"folderId":  folderID,
	}, "filter[type]", folder.ItemTypeFolder)
	if err != nil {
		return nil, err
	}
	return foldersOf(items, folderID), nil
}

func foldersOf(items []jsonAPIItem, parentID string) []folder.Node {
	nodes := make([]folder.Node, 0, len(items))
	for _, it := range items {
		if it.Type != folder.ItemTypeFolder {
			continue
		}
		nodes = append(nodes, folder.Node{
			ID:          it.ID,
			Name:        it.name(),
			ObjectCount: it.Attributes.ObjectCount,
			Hidden:      it.Attributes.Hidden,
			ParentID:    parentID,
		})
	}
	return nodes
}

// listAll follows JSON:API page[number] pagination. extra is a flat list of
// query key/value pairs.
func (c *Client) listAll(ctx context.Context, op, path string, params map[string]string, extra ...string) ([]jsonAPIItem, error) {
	var all []jsonAPIItem
	for page := 0; page < maxPages; page++ {
		req, err := c.request(ctx)
		if err != nil {
			return nil, err
		}
		req.SetQueryParam("page[number]", strconv.Itoa(page))
		req.SetQueryParam("page[limit]", strconv.Itoa(folderPageLimit))
		for i := 0; i+1 < len(extra); i += 2 {
			req.SetQueryParam(extra[i], extra[i+1])
		}
		if params != nil {
			req.SetPathParams(params)
		}

		var out jsonAPIList
		resp, err := req.SetResult(&out).Get(path)
		if err := checkResponse(op, resp, err); err != nil {
			return nil, err
		}
		all = append(all, out.Data...)
		if !out.hasNext() || len(out.Data) == 0 {
			return all, nil
		}
	}
	return nil, fmt.Errorf("%s: more than %d pages", op, maxPages)
}
