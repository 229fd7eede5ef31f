// Package notion is a minimal client for the workspace API. Every request is
// routed through a gate.Gate, so callers never need their own pacing.
package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/stacklok/loresync/internal/gate"
	"github.com/stacklok/loresync/internal/httpclient"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.notion.com/v1"

	// DefaultVersion is the API version header value the engine is written against.
	DefaultVersion = "2022-06-28"

	// MaxPageSize is the largest page size list endpoints accept.
	MaxPageSize = 100
)

// ErrNoToken is returned when a client is built without a credential.
var ErrNoToken = errors.New("workspace token is required")

// Options configures a Client.
type Options struct {
	BaseURL string
	Version string
	Token   string
	HTTP    httpclient.Client
	Gate    *gate.Gate
}

// Client talks to the workspace API.
type Client struct {
	baseURL string
	version string
	token   string
	http    httpclient.Client
	gate    *gate.Gate
}

// NewClient creates a Client. A missing HTTP client or gate gets a default.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrNoToken
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.HTTP == nil {
		opts.HTTP = httpclient.NewDefaultClient(0)
	}
	if opts.Gate == nil {
		opts.Gate = gate.New(gate.Options{})
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		version: opts.Version,
		token:   opts.Token,
		http:    opts.HTTP,
		gate:    opts.Gate,
	}, nil
}

// Me returns the bot user behind the token. It is the cheapest way to prove
// the workspace is reachable and the credential valid.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.call(ctx, "users.me", http.MethodGet, "/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBlockChildren returns one page of a block's children.
func (c *Client) ListBlockChildren(ctx context.Context, blockID, cursor string) (*List[Block], error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(MaxPageSize))
	if cursor != "" {
		q.Set("start_cursor", cursor)
	}
	path := "/blocks/" + url.PathEscape(blockID) + "/children?" + q.Encode()

	var out List[Block]
	if err := c.call(ctx, "blocks.children.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllBlockChildren follows the cursor until every child has been read.
func (c *Client) AllBlockChildren(ctx context.Context, blockID string) ([]Block, error) {
	var (
		all    []Block
		cursor string
	)
	for {
		page, err := c.ListBlockChildren(ctx, blockID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// RetrieveDatabase returns a database including its property schema.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Object, error) {
	var out Object
	path := "/databases/" + url.PathEscape(databaseID)
	if err := c.call(ctx, "databases.retrieve", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryDatabase returns one page of rows from a database.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, req QueryRequest) (*List[Object], error) {
	var out List[Object]
	path := "/databases/" + url.PathEscape(databaseID) + "/query"
	if err := c.call(ctx, "databases.query", http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePage creates a page. The request must carry at least one property.
func (c *Client) CreatePage(ctx context.Context, req CreatePageRequest) (*Object, error) {
	if len(req.Properties) == 0 {
		return nil, errors.New("refusing to create a page without properties")
	}
	var out Object
	if err := c.call(ctx, "pages.create", http.MethodPost, "/pages", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RetrievePage returns a page with its property values.
func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Object, error) {
	var out Object
	path := "/pages/" + url.PathEscape(pageID)
	if err := c.call(ctx, "pages.retrieve", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns one page of workspace search results.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*List[Object], error) {
	if req.PageSize == 0 {
		req.PageSize = MaxPageSize
	}
	var out List[Object]
	if err := c.call(ctx, "search", http.MethodPost, "/search", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAll follows the search cursor for at most maxPages pages
// (0 means no limit).
func (c *Client) SearchAll(ctx context.Context, req SearchRequest, maxPages int) ([]Object, error) {
	var all []Object
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		res, err := c.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		all = append(all, res.Results...)
		if !res.HasMore || res.NextCursor == "" {
			break
		}
		req.StartCursor = res.NextCursor
	}
	return all, nil
}

func (c *Client) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.token)
	h.Set("Notion-Version", c.version)
	return h
}

func (c *Client) call(ctx context.Context, label, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", label, err)
		}
	}

	return c.gate.Do(ctx, label, func(ctx context.Context) error {
		resp, err := c.http.Do(ctx, httpclient.Request{
			Method: method,
			URL:    c.baseURL + path,
			Header: c.headers(),
			Body:   payload,
		})
		if err != nil {
			return translateError(err)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
}
