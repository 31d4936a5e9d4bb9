package twitter

import (
	"time"

	"prompthunter/pkg/models"
)

// PageRequest asks for one page of a user's timeline
type PageRequest struct {
	UserID          string
	PaginationToken string
	MaxResults      int
	SinceID         string
	ExcludeReplies  bool
	ExcludeRetweets bool
}

// Page is one timeline page, newest item first. NextToken is empty on the last page.
type Page struct {
	Items       []models.RawItem
	NextToken   string
	ResultCount int
	NewestID    string
}

// User is a resolved account
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type apiError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type tweet struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

type timelineMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id"`
	OldestID    string `json:"oldest_id"`
	NextToken   string `json:"next_token"`
}

type timelineResponse struct {
	Data   []tweet      `json:"data"`
	Meta   timelineMeta `json:"meta"`
	Errors []apiError   `json:"errors"`
}

type userResponse struct {
	Data   *User      `json:"data"`
	Errors []apiError `json:"errors"`
}
