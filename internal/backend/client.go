// Package backend is a thin authenticated HTTP client for the record-
// oriented API that channels and functions are bridged to.
//
// Grounded on other_examples/96301a52_WAN-Ninjas-AmityVox's IRC bridge,
// which talks to its own external HTTP service through a plain
// *http.Client with a fixed timeout and structured slog logging; no
// ecosystem HTTP client wrapper recurs anywhere else in the retrieval pack,
// so net/http is the grounded, not just convenient, choice here.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Response is the normalized shape of a backend reply: the raw HTTP status
// so handlers can distinguish 404/403/5xx per spec, plus the decoded body.
// The backend's "data" envelope is accepted both as an object and as an
// array of objects, since different endpoints shape it differently.
type Response struct {
	Status int
	Rows   []map[string]interface{}
	Object map[string]interface{}
}

// Client is a per-connection-independent, reusable backend handle. One
// Client is shared by the whole server; callers pass the bearer token for
// each tenant's authenticated identity explicitly.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// New constructs a Client against baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// LoginResult is the parsed outcome of POST /auth/login.
type LoginResult struct {
	Token  string
	Access string
}

// Login calls POST /auth/login and accepts both {data:{token|jwt,access}}
// and flat {token|jwt,access} response shapes, per spec §4.8.
func (c *Client) Login(ctx context.Context, tenant, username string) (LoginResult, error) {
	body := map[string]string{"tenant": tenant, "username": username}

	resp, err := c.do(ctx, http.MethodPost, "/auth/login", "", body)
	if err != nil {
		return LoginResult{}, errors.Wrap(err, "calling /auth/login")
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return LoginResult{}, errors.Errorf("login rejected: status %d", resp.Status)
	}

	obj := resp.Object
	if data, ok := obj["data"].(map[string]interface{}); ok {
		obj = data
	}

	result := LoginResult{
		Token:  stringField(obj, "token", "jwt"),
		Access: stringField(obj, "access"),
	}
	if result.Token == "" {
		return LoginResult{}, errors.New("login response missing token/jwt")
	}

	if claims, _, parseErr := jwt.NewParser().ParseUnverified(result.Token, jwt.MapClaims{}); parseErr == nil {
		if mc, ok := claims.Claims.(jwt.MapClaims); ok {
			c.log.Debug("backend token issued", "tenant", tenant, "username", username, "claims_exp", mc["exp"])
		}
	}

	return result, nil
}

func stringField(obj map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := obj[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// GetData calls GET /api/data/{schema}[/{id}][?limit=N]. id and limit are
// optional; pass id="" and limit<=0 to omit them.
func (c *Client) GetData(ctx context.Context, token, schema, id string, limit int) (Response, error) {
	path := "/api/data/" + url.PathEscape(schema)
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	query := ""
	if limit > 0 {
		query = "limit=" + strconv.Itoa(limit)
	}
	return c.request(ctx, http.MethodGet, path, query, nil, token)
}

// Find calls POST /api/find/{schema}.
func (c *Client) Find(ctx context.Context, token, schema string, body map[string]interface{}) (Response, error) {
	return c.request(ctx, http.MethodPost, "/api/find/"+url.PathEscape(schema), "", body, token)
}

// Aggregate calls POST /api/aggregate/{schema}.
func (c *Client) Aggregate(ctx context.Context, token, schema string, body map[string]interface{}) (Response, error) {
	return c.request(ctx, http.MethodPost, "/api/aggregate/"+url.PathEscape(schema), "", body, token)
}

// DescribeSchema calls GET /api/describe/schema/{schema}, used for the
// kick-permission backend fallback (spec §4.4).
func (c *Client) DescribeSchema(ctx context.Context, token, schema string) (Response, error) {
	return c.request(ctx, http.MethodGet, "/api/describe/schema/"+url.PathEscape(schema), "", nil, token)
}

// File performs one of the /api/file/{retrieve,store,delete} operations.
func (c *Client) File(ctx context.Context, token, op string, body map[string]interface{}) (Response, error) {
	return c.request(ctx, http.MethodPost, "/api/file/"+url.PathEscape(op), "", body, token)
}

func (c *Client) do(ctx context.Context, method, path, query string, body interface{}) (Response, error) {
	return c.request(ctx, method, path, query, body, "")
}

func (c *Client) request(ctx context.Context, method, path, query string, body interface{}, token string) (Response, error) {
	u := c.baseURL + path
	if query != "" {
		u += "?" + query
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Response{}, errors.Wrap(err, "encoding request body")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return Response{}, errors.Wrap(err, "building request")
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return Response{}, errors.Wrapf(err, "requesting %s %s", method, path)
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, errors.Wrap(err, "reading response body")
	}

	resp := Response{Status: httpResp.StatusCode}
	if len(raw) == 0 {
		return resp, nil
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		// Some endpoints (bare arrays) don't decode as an object; fall
		// back to a rows-only parse rather than failing the call.
		var rows []map[string]interface{}
		if err2 := json.Unmarshal(raw, &rows); err2 == nil {
			resp.Rows = rows
			return resp, nil
		}
		return resp, errors.Wrapf(err, "decoding response from %s %s", method, path)
	}
	resp.Object = generic

	switch data := generic["data"].(type) {
	case []interface{}:
		for _, item := range data {
			if row, ok := item.(map[string]interface{}); ok {
				resp.Rows = append(resp.Rows, row)
			}
		}
	case map[string]interface{}:
		resp.Rows = []map[string]interface{}{data}
	}

	return resp, nil
}

// ErrorText renders a backend Response's best-effort error message, used
// when surfacing a non-2xx status as sender-visible NOTICE text.
func (r Response) ErrorText() string {
	if msg, ok := r.Object["error"].(string); ok && msg != "" {
		return msg
	}
	if msg, ok := r.Object["message"].(string); ok && msg != "" {
		return msg
	}
	return fmt.Sprintf("backend returned status %d", r.Status)
}
