// internal/common/http/client_test.go
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]int{"echo": in["n"]})
	}))
	defer srv.Close()

	client := NewClient(time.Second, 2)
	client.backoff = time.Millisecond

	var out map[string]int
	require.NoError(t, client.PostJSON(context.Background(), srv.URL, map[string]int{"n": 7}, &out))
	assert.Equal(t, 7, out["echo"])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPostJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad weights", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(time.Second, 3)
	err := client.PostJSON(context.Background(), srv.URL, map[string]int{}, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
