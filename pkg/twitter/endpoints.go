package twitter

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the Twitter API host
	DefaultBaseURL = "https://api.twitter.com"

	// MinPageSize and MaxPageSize bound max_results on the timeline endpoint
	MinPageSize = 5
	MaxPageSize = 100

	tweetFields = "id,text,created_at,author_id"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// NormalizeHandle strips a leading @ and surrounding space and validates the result
func NormalizeHandle(handle string) (string, error) {
	h := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if !handlePattern.MatchString(h) {
		return "", fmt.Errorf("invalid handle %q: expected 1-15 letters, digits or underscores", handle)
	}
	return h, nil
}

// ClampPageSize keeps a requested page size inside the provider range
func ClampPageSize(n int) int {
	if n < MinPageSize {
		return MinPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// UserLookupURL builds the URL resolving a handle to a user id
func UserLookupURL(baseURL, handle string) string {
	return fmt.Sprintf("%s/2/users/by/username/%s", strings.TrimRight(baseURL, "/"), url.PathEscape(handle))
}

// TimelineURL builds the user timeline URL for one page request.
// since_id is only sent on the first page; continuation tokens already carry the cutoff.
func TimelineURL(baseURL string, req PageRequest) string {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(ClampPageSize(req.MaxResults)))
	params.Set("tweet.fields", tweetFields)

	var exclude []string
	if req.ExcludeReplies {
		exclude = append(exclude, "replies")
	}
	if req.ExcludeRetweets {
		exclude = append(exclude, "retweets")
	}
	if len(exclude) > 0 {
		params.Set("exclude", strings.Join(exclude, ","))
	}

	if req.PaginationToken != "" {
		params.Set("pagination_token", req.PaginationToken)
	} else if req.SinceID != "" {
		params.Set("since_id", req.SinceID)
	}

	return fmt.Sprintf("%s/2/users/%s/tweets?%s", strings.TrimRight(baseURL, "/"), url.PathEscape(req.UserID), params.Encode())
}
