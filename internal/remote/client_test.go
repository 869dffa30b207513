// ABOUTME: Tests for the REST client against an httptest server
// ABOUTME: Verifies request shape, bearer tokens, and status code mapping

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tasksync/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", func() string { return "tok" })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_Insert(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/tasks", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in model.Task
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = 7
		writeJSON(w, http.StatusCreated, in)
	})

	got, err := c.Insert(context.Background(), model.Task{Title: "Buy milk", CreatorID: "u1", CreatorName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "Buy milk", got.Title)
}

func TestClient_UpdateSendsOnlyPatchedFields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/rest/v1/tasks/5", r.URL.Path)

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, map[string]any{"is_complete": true}, raw)
		writeJSON(w, http.StatusOK, model.Task{ID: 5, IsComplete: true})
	})

	done := true
	require.NoError(t, c.Update(context.Background(), 5, model.TaskPatch{IsComplete: &done}))
}

func TestClient_DeleteNoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/rest/v1/tasks/3", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.Delete(context.Background(), 3))
}

func TestClient_QueryAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, []model.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}})
	})
	tasks, err := c.QueryAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestClient_QueryAllNullIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, nil)
	})
	tasks, err := c.QueryAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tasks)
	assert.Empty(t, tasks)
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, []model.Task{})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, func() string { return "" }).QueryAll(context.Background())
	require.NoError(t, err)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"policy violation", http.StatusForbidden, ErrorResponse{Code: "42501", Message: "row policy"}, model.ErrPolicyViolation},
		{"unauthorized", http.StatusUnauthorized, ErrorResponse{Code: "401", Message: "expired"}, model.ErrUnauthorized},
		{"bad request", http.StatusBadRequest, ErrorResponse{Code: "400", Message: "title required"}, ErrBadRequest},
		{"not found", http.StatusNotFound, ErrorResponse{Code: "404"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			err := c.Delete(context.Background(), 1)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ForbiddenWithoutPolicyCodeIsTransport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Code: "403", Message: "blocked by proxy"})
	})
	err := c.Delete(context.Background(), 1)
	assert.NotErrorIs(t, err, model.ErrPolicyViolation)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Contains(t, se.Error(), "blocked by proxy")
}

func TestClient_PlainTextError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})
	_, err := c.QueryAll(context.Background())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Status)
	assert.Equal(t, "upstream down", se.Message)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).QueryAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending request")
}
