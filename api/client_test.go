package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	base, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewClient(base, srv.Client())
}

func TestClientFromEnvironment(t *testing.T) {
	t.Setenv("EXECUTORCH_HOST", "http://10.0.0.1:9000")

	c, err := ClientFromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:9000", c.base.Host)
}

func TestClientRemap(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/remap", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "executorch/"))

		var req RemapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"lm_head.weight"}, req.Names)

		_ = json.NewEncoder(w).Encode(RemapResponse{Entries: []RemapEntry{{From: "lm_head.weight", To: "output.weight", Matched: true}}})
	})

	resp, err := c.Remap(context.Background(), &RemapRequest{Names: []string{"lm_head.weight"}})
	require.NoError(t, err)
	assert.Equal(t, []RemapEntry{{From: "lm_head.weight", To: "output.weight", Matched: true}}, resp.Entries)
}

func TestClientVersionAndShapes(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/version":
			_ = json.NewEncoder(w).Encode(VersionResponse{Version: "1.2.3"})
		case "/api/shapes":
			_, _ = w.Write([]byte(`{"model":"llava","max_seq_len":768,"inputs":{"prompt":[{"0":{"static":1}}]}}`))
		default:
			http.NotFound(w, r)
		}
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)

	shapes, err := c.Shapes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, shapes.Inputs["prompt"][0][0].Static)
}

func TestClientStatusError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json", `{"error":"names are required"}`, "names are required"},
		{"plain", "bad things", "bad things"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Lower(context.Background(), &LowerRequest{Graph: json.RawMessage(`{}`)})

			var serr StatusError
			require.True(t, errors.As(err, &serr))
			assert.Equal(t, http.StatusBadRequest, serr.StatusCode)
			assert.Equal(t, tt.want, serr.ErrorMessage)
		})
	}
}

func TestStatusErrorMessage(t *testing.T) {
	assert.Equal(t, "400 Bad Request: nope", StatusError{Status: "400 Bad Request", ErrorMessage: "nope"}.Error())
	assert.Equal(t, "nope", StatusError{ErrorMessage: "nope"}.Error())
	assert.Contains(t, StatusError{}.Error(), "something went wrong")
}
