package acc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AndrzejSamsonowicz/ACC-User-Management-Cloud-sub000/internal/domain/subject"
)

type usersPage struct {
	Pagination struct {
		Limit        int `json:"limit"`
		Offset       int `json:"offset"`
		TotalResults int `json:"totalResults"`
	} `json:"pagination"`
	Results []subject.ProjectUser `json:"results"`
}

// ProjectUsers returns every member of the project, paging with limit and
// offset until totalResults is reached or a short page comes back.
func (c *Client) ProjectUsers(ctx context.Context, projectID string) ([]subject.ProjectUser, error) {
	var users []subject.ProjectUser
	offset := 0
	for page := 0; page < maxPages; page++ {
		req, err := c.request(ctx)
		if err != nil {
			return nil, err
		}
		var out usersPage
		resp, err := req.
			SetPathParam("projectId", AccountProjectID(projectID)).
			SetQueryParams(map[string]string{
				"limit":  strconv.Itoa(c.usersPageSize),
				"offset": strconv.Itoa(offset),
			}).
			SetResult(&out).
			Get(pathProjectUsers)
		if err := checkResponse(opProjectUsers, resp, err); err != nil {
			return nil, err
		}

		users = append(users, out.Results...)
		returned := len(out.Results)
		total := out.Pagination.TotalResults
		if returned == 0 || returned < c.usersPageSize || (total > 0 && offset+returned >= total) {
			return users, nil
		}
		offset += returned
	}
	return nil, fmt.Errorf("%s: more than %d pages", opProjectUsers, maxPages)
}

// Profile is the signed-in Autodesk user.
type Profile struct {
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Email     string `json:"emailId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Me returns the profile of the token's owner.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var out Profile
	resp, err := req.SetResult(&out).Get(pathMe)
	if err := checkResponse(opMe, resp, err); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, fmt.Errorf("%s: response has no userId", opMe)
	}
	return &out, nil
}
