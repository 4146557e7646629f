// Package api - Client des executorch Export-Dienstes.
//
// Package api implements the client-side API for code wishing to interact
// with the executorch export service. The methods of the [Client] type
// correspond to the routes served by the server package.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/version"
)

// Client encapsulates client state for interacting with the export
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable EXECUTORCH_HOST, which points to the network host and
// port on which the service is listening. The format of this variable is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var reqBody io.Reader
	switch reqData := reqData.(type) {
	case io.Reader:
		reqBody = reqData
	case nil:
		// noop
	default:
		data, err := json.Marshal(reqData)
		if err != nil {
			return err
		}

		reqBody = bytes.NewReader(data)
	}

	requestURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, requestURL.String(), reqBody)
	if err != nil {
		return err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", fmt.Sprintf("executorch/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version()))

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}

// Remap renames tensor names with the server's rules or req.Rules.
func (c *Client) Remap(ctx context.Context, req *RemapRequest) (*RemapResponse, error) {
	var resp RemapResponse
	if err := c.do(ctx, http.MethodPost, "/api/remap", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Preprocess resizes, pads and normalizes an image.
func (c *Client) Preprocess(ctx context.Context, req *PreprocessRequest) (*PreprocessResponse, error) {
	var resp PreprocessResponse
	if err := c.do(ctx, http.MethodPost, "/api/preprocess", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Lower lowers an exported graph to QNN ops.
func (c *Client) Lower(ctx context.Context, req *LowerRequest) (*LowerResponse, error) {
	var resp LowerResponse
	if err := c.do(ctx, http.MethodPost, "/api/lower", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shapes returns the dynamic shape declarations of the loaded model.
func (c *Client) Shapes(ctx context.Context) (*ShapesResponse, error) {
	var resp ShapesResponse
	if err := c.do(ctx, http.MethodGet, "/api/shapes", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Version returns the version of the server.
func (c *Client) Version(ctx context.Context) (string, error) {
	var version VersionResponse
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &version); err != nil {
		return "", err
	}

	return version.Version, nil
}
