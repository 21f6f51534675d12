package compare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/catfood-compare/internal/feeding"
)

// maxResponseBytes bounds how much of a basket response is read.
const maxResponseBytes = 256 * 1024

// Client talks to a remote basket store through its HTTP API. It returns
// the same errors as Service so callers can use either.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a client for the store at baseURL. A nil hc uses a client
// with a 10s timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: hc}
}

func (c *Client) Add(ctx context.Context, basketID string, f Facts) ([]Entry, error) {
	var out basketResponse
	if err := c.do(ctx, http.MethodPost, "/api/compare/add", basketQuery(basketID), f, &out); err != nil {
		return nil, err
	}
	return Entries(out.Items), nil
}

func (c *Client) Update(ctx context.Context, basketID, id string, p Patch) ([]Entry, error) {
	var out basketResponse
	if err := c.do(ctx, http.MethodPut, "/api/compare/"+url.PathEscape(id), basketQuery(basketID), p, &out); err != nil {
		return nil, err
	}
	return Entries(out.Items), nil
}

func (c *Client) Remove(ctx context.Context, basketID, id string) ([]Entry, error) {
	var out basketResponse
	if err := c.do(ctx, http.MethodDelete, "/api/compare/"+url.PathEscape(id), basketQuery(basketID), nil, &out); err != nil {
		return nil, err
	}
	return Entries(out.Items), nil
}

// List fetches the basket with metrics derived remotely against target.
func (c *Client) List(ctx context.Context, basketID string, target feeding.CalorieTarget) ([]Item, error) {
	q := basketQuery(basketID)
	if !target.IsFallback() {
		q.Set("dailyCalories", strconv.FormatFloat(target.Calories, 'f', -1, 64))
	}
	var out basketResponse
	if err := c.do(ctx, http.MethodGet, "/api/compare", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// MaxItems asks the store for its capacity.
func (c *Client) MaxItems(ctx context.Context) (int, error) {
	var out struct {
		MaxItems int `json:"maxItems"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/compare/max", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.MaxItems, nil
}

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(code int, raw []byte) error {
	var body errorBody
	_ = json.Unmarshal(raw, &body)

	switch code {
	case http.StatusConflict:
		return ErrCapacityExceeded
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest:
		if len(body.Errors) > 0 {
			fields := make([]string, 0, len(body.Errors))
			for f := range body.Errors {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			return &ValidationError{Field: fields[0], Reason: body.Errors[fields[0]]}
		}
		if body.Message == ErrMissingBasketID.Error() {
			return ErrMissingBasketID
		}
	}
	if body.Message == "" {
		body.Message = http.StatusText(code)
	}
	return fmt.Errorf("compare api: status %d: %w", code, errors.New(body.Message))
}

func basketQuery(basketID string) url.Values {
	return url.Values{"basketId": []string{basketID}}
}
