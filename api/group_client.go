package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/honganh1206/stargazer/server/data"
)

func (c *Client) ListGroups(ctx context.Context, page, size int) (*data.TeamPage, error) {
	return c.SearchGroups(ctx, "", page, size)
}

func (c *Client) SearchGroups(ctx context.Context, keyword string, page, size int) (*data.TeamPage, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	q.Set("page", strconv.Itoa(page))
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}

	var result data.TeamPage
	if err := c.doRequest(ctx, http.MethodGet, "/api/groups?"+q.Encode(), nil, &result, true); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetGroup(ctx context.Context, id string) (*data.Team, error) {
	var team data.Team
	if err := c.doRequest(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(id), nil, &team, true); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) CreateGroup(ctx context.Context, in data.TeamInput) (*data.Team, error) {
	var team data.Team
	if err := c.doRequest(ctx, http.MethodPost, "/api/groups", in, &team, true); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) UpdateGroup(ctx context.Context, id string, in data.TeamInput) (*data.Team, error) {
	var team data.Team
	if err := c.doRequest(ctx, http.MethodPut, "/api/groups/"+url.PathEscape(id), in, &team, true); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) JoinGroup(ctx context.Context, id string) (*data.Team, error) {
	var team data.Team
	if err := c.doRequest(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(id)+"/join", nil, &team, true); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *Client) LeaveGroup(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(id)+"/join", nil, nil, true)
}

func (c *Client) ListBookmarks(ctx context.Context) ([]data.Team, error) {
	var teams []data.Team
	if err := c.doRequest(ctx, http.MethodGet, "/api/bookmarks", nil, &teams, true); err != nil {
		return nil, err
	}
	return teams, nil
}

func (c *Client) AddBookmark(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodPut, "/api/bookmarks/"+url.PathEscape(id), nil, nil, true)
}

func (c *Client) RemoveBookmark(ctx context.Context, id string) error {
	return c.doRequest(ctx, http.MethodDelete, "/api/bookmarks/"+url.PathEscape(id), nil, nil, true)
}
