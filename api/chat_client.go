package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/honganh1206/stargazer/server/data"
)

// ChatHistory pages backwards through a team chat. Pass 0 as before for the
// newest page, then the previous page's NextCursor.
func (c *Client) ChatHistory(ctx context.Context, teamID string, before int64, size int) (*data.MessagePage, error) {
	q := url.Values{}
	if before > 0 {
		q.Set("before", strconv.FormatInt(before, 10))
	}
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}

	path := "/api/chat/" + url.PathEscape(teamID) + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page data.MessagePage
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (c *Client) SendMessage(ctx context.Context, teamID, content string) (*data.Message, error) {
	var msg data.Message
	path := "/api/chat/" + url.PathEscape(teamID) + "/messages"
	if err := c.doRequest(ctx, http.MethodPost, path, sendMessageRequest{Content: content}, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) MarkRead(ctx context.Context, teamID string) error {
	return c.doRequest(ctx, http.MethodPost, "/api/chat/"+url.PathEscape(teamID)+"/read", nil, nil, true)
}
