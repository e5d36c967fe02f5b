package ontology

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataworks/sampleflow/pkg/errors"
)

// serviceName identifies the ontology API in error messages.
const serviceName = "OntologyAPI"

// Client is an HTTP implementation of Service against the ontology API's
// JSON-RPC endpoint.
type Client struct {
	url  string
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates an ontology API client for the given endpoint URL.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:  url,
		http: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  []any  `json:"params"`
	Version string `json:"version"`
}

type lookupParams struct {
	Name      string `json:"name"`
	Namespace string `json:"ns"`
	Timestamp int64  `json:"ts"`
}

type lookupResult struct {
	Results []Term `json:"results"`
}

type rpcResponse struct {
	Result []lookupResult `json:"result"`
	Error  *rpcError      `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
}

// LookupByName implements the Service interface.
func (c *Client) LookupByName(ctx context.Context, namespace, name string) ([]Term, error) {
	payload := rpcRequest{
		Method: "OntologyAPI.get_term_by_name",
		ID:     uuid.NewString(),
		Params: []any{lookupParams{
			Name:      name,
			Namespace: namespace,
			Timestamp: time.Now().UnixMilli(),
		}},
		Version: "1.1",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding ontology request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building ontology request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapAPI(serviceName, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapAPI(serviceName, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError(serviceName, resp.StatusCode, string(raw))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Wrap(err, "decoding ontology response")
	}
	if decoded.Error != nil {
		return nil, errors.NewAPIError(serviceName, resp.StatusCode, decoded.Error.Message)
	}
	if len(decoded.Result) == 0 {
		return nil, nil
	}

	return decoded.Result[0].Results, nil
}
