package twitter

// timeline.go — implementa ports.SignalSource.

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// FetchPosts yields the account's own posts (no replies, no retweets) newer
// than sinceID, paging lazily. The sequence stops at the first error, which
// is a *domain.SignalSourceAuthError for 401/403 and a
// *domain.SignalSourceTransientError otherwise.
func (c *Client) FetchPosts(ctx context.Context, account string, sinceID int64) iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		userID, err := c.userID(ctx, account)
		if err != nil {
			yield(domain.Post{}, classify(account, err))
			return
		}

		token := ""
		for {
			page, err := c.timelinePage(ctx, userID, sinceID, token)
			if err != nil {
				yield(domain.Post{}, classify(account, err))
				return
			}
			for _, tw := range page.Data {
				post, err := toPost(tw)
				if err != nil {
					yield(domain.Post{}, classify(account, err))
					return
				}
				if !yield(post, nil) {
					return
				}
			}
			if page.Meta.NextToken == "" {
				return
			}
			token = page.Meta.NextToken
		}
	}
}

// userID resolves and caches the numeric id of account.
func (c *Client) userID(ctx context.Context, account string) (string, error) {
	c.mu.Lock()
	id, ok := c.userIDs[account]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var res userResponse
	if err := c.get(ctx, "/2/users/by/username/"+url.PathEscape(account), nil, &res); err != nil {
		return "", fmt.Errorf("lookup user %s: %w", account, err)
	}
	if res.Data == nil || res.Data.ID == "" {
		detail := "no data"
		if len(res.Errors) > 0 {
			detail = res.Errors[0].Detail
		}
		return "", fmt.Errorf("lookup user %s: %s", account, detail)
	}

	c.mu.Lock()
	c.userIDs[account] = res.Data.ID
	c.mu.Unlock()
	return res.Data.ID, nil
}

func (c *Client) timelinePage(ctx context.Context, userID string, sinceID int64, token string) (*timelineResponse, error) {
	q := url.Values{}
	q.Set("exclude", "replies,retweets")
	q.Set("max_results", strconv.Itoa(c.pageSize))
	q.Set("tweet.fields", "created_at")
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	if token != "" {
		q.Set("pagination_token", token)
	}

	var res timelineResponse
	if err := c.get(ctx, "/2/users/"+userID+"/tweets", q, &res); err != nil {
		return nil, fmt.Errorf("timeline %s: %w", userID, err)
	}
	return &res, nil
}

func toPost(tw tweet) (domain.Post, error) {
	id, err := strconv.ParseInt(tw.ID, 10, 64)
	if err != nil {
		return domain.Post{}, fmt.Errorf("tweet id %q: %w", tw.ID, err)
	}
	post := domain.Post{ID: id, Text: tw.Text}
	if tw.CreatedAt != "" {
		post.CreatedAt, err = time.Parse(time.RFC3339, tw.CreatedAt)
		if err != nil {
			return domain.Post{}, fmt.Errorf("tweet %d created_at %q: %w", id, tw.CreatedAt, err)
		}
	}
	return post, nil
}

func classify(account string, err error) error {
	var se *statusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		return &domain.SignalSourceAuthError{Account: account, Status: se.Status, Err: err}
	}
	return &domain.SignalSourceTransientError{Account: account, Err: err}
}
