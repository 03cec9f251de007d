package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Class represents a scheduled class
type Class struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Course      string    `json:"course"`
	Level       string    `json:"level"`
	TeacherID   string    `json:"teacher_id"`
	TeacherName string    `json:"teacher_name"`
	Room        string    `json:"room"`
	Schedule    string    `json:"schedule"`
	Students    int       `json:"students"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

// ListClassesResponse represents a page of classes
type ListClassesResponse struct {
	Classes    []Class `json:"classes"`
	TotalCount int     `json:"total_count"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
}

// ListClasses retrieves the classes visible to the authenticated user
func (c *Client) ListClasses(ctx context.Context, page, pageSize int) (*ListClassesResponse, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if pageSize > 0 {
		q.Set("page_size", fmt.Sprint(pageSize))
	}
	path := PathClasses
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, requestOptions{})
	if err != nil {
		return nil, err
	}

	var list ListClassesResponse
	if err := parseResponse(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}
