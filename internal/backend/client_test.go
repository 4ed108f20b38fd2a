package backend

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(srv.URL, 2*time.Second, log)
}

func TestLoginWrappedDataEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme", body["tenant"])
		assert.Equal(t, "alice", body["username"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"token": "tok-1", "access": "full"},
		})
	})

	result, err := c.Login(context.Background(), "acme", "alice")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", result.Token)
	assert.Equal(t, "full", result.Access)
}

func TestLoginFlatShapeWithJWTField(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jwt": "tok-2", "access": "read",
		})
	})

	result, err := c.Login(context.Background(), "acme", "bob")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", result.Token)
	assert.Equal(t, "read", result.Access)
}

func TestLoginRejectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad credentials"}`))
	})

	_, err := c.Login(context.Background(), "acme", "eve")
	assert.Error(t, err)
}

func TestLoginMissingTokenErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access": "read"})
	})

	_, err := c.Login(context.Background(), "acme", "eve")
	assert.Error(t, err)
}

func TestGetDataSetsBearerAndPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/data/users/42", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"id": "42", "name": "Alice"},
		})
	})

	resp, err := c.GetData(context.Background(), "tok-1", "users", "42", 0)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Alice", resp.Rows[0]["name"])
}

func TestGetDataWithLimitQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "limit=10", r.URL.RawQuery)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []interface{}{
				map[string]interface{}{"id": "1"},
				map[string]interface{}{"id": "2"},
			},
		})
	})

	resp, err := c.GetData(context.Background(), "tok-1", "users", "", 10)
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 2)
}

func TestFindPostsLimitBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/find/users", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(10), body["limit"])
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": []interface{}{}})
	})

	_, err := c.Find(context.Background(), "tok-1", "users", map[string]interface{}{"limit": 10})
	require.NoError(t, err)
}

func TestDescribeSchemaNotFoundStatusSurfaced(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"no such schema"}`))
	})

	resp, err := c.DescribeSchema(context.Background(), "tok-1", "ghosts")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.Equal(t, "no such schema", resp.ErrorText())
}

func TestResponseErrorTextFallsBackToStatus(t *testing.T) {
	resp := Response{Status: 500, Object: map[string]interface{}{}}
	assert.Equal(t, "backend returned status 500", resp.ErrorText())
}

func TestRequestBareArrayFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"1"},{"id":"2"}]`))
	})

	resp, err := c.GetData(context.Background(), "tok-1", "users", "", 0)
	require.NoError(t, err)
	assert.Len(t, resp.Rows, 2)
}
