// Package recordstore talks to the sample record store: a JSON-RPC 1.1
// client for the remote service plus a sqlite-backed local store for offline
// runs. Both satisfy the importer's Store interface.
package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataworks/sampleflow/pkg/diagnostics"
	"github.com/strataworks/sampleflow/pkg/errors"
	"github.com/strataworks/sampleflow/pkg/samples"
)

const serviceName = "SampleService"

// ACLs is the wire shape of a sample's access control lists.
type ACLs struct {
	Admin      []string `json:"admin"`
	Write      []string `json:"write"`
	Read       []string `json:"read"`
	PublicRead int      `json:"public_read"`
}

// Client is the JSON-RPC record store client.
type Client struct {
	url   string
	token string
	http  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a record store client. token is sent as the
// Authorization header on every call.
func NewClient(url, token string, opts ...ClientOption) *Client {
	c := &Client{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
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

type rpcResponse struct {
	Result []json.RawMessage `json:"result"`
	Error  *rpcError         `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
}

// call posts one JSON-RPC request and decodes the first result entry into
// out. A nil out discards the result.
func (c *Client) call(ctx context.Context, method string, param, out any) error {
	payload := rpcRequest{
		Method:  method,
		ID:      uuid.NewString(),
		Params:  []any{param},
		Version: "1.1",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s request", method)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.WrapAPI(serviceName, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapAPI(serviceName, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.NewAPIError(serviceName, resp.StatusCode, string(raw))
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return errors.Wrapf(err, "decoding %s response", method)
	}
	if decoded.Error != nil {
		return errors.NewAPIError(serviceName, resp.StatusCode, decoded.Error.Message)
	}
	if out == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.NewAPIError(serviceName, resp.StatusCode, "empty result")
	}
	return json.Unmarshal(decoded.Result[0], out)
}

// wireSample is the sample document as the service stores it.
type wireSample struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	NodeTree []samples.Node `json:"node_tree"`
}

type createParams struct {
	Sample       wireSample `json:"sample"`
	PriorVersion *int       `json:"prior_version"`
}

type createResult struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// Create persists a sample. A non-empty priorID saves a new version of that
// record; an empty one creates a fresh record at version 1.
func (c *Client) Create(ctx context.Context, sample *samples.Sample, priorID string, priorVersion *int) (samples.Ref, error) {
	var res createResult
	err := c.call(ctx, "SampleService.create_sample", createParams{
		Sample: wireSample{
			ID:       priorID,
			Name:     sample.Name,
			NodeTree: sample.NodeTree,
		},
		PriorVersion: priorVersion,
	}, &res)
	if err != nil {
		return samples.Ref{}, err
	}
	return samples.Ref{ID: res.ID, Name: sample.Name, Version: res.Version}, nil
}

type getParams struct {
	ID      string `json:"id"`
	Version *int   `json:"version,omitempty"`
}

type getResult struct {
	ID       string         `json:"id"`
	Version  int            `json:"version"`
	Name     string         `json:"name"`
	NodeTree []samples.Node `json:"node_tree"`
}

// Get fetches a sample by record ID; a nil version fetches the latest.
func (c *Client) Get(ctx context.Context, id string, version *int) (*samples.Sample, samples.Ref, error) {
	var res getResult
	err := c.call(ctx, "SampleService.get_sample", getParams{ID: id, Version: version}, &res)
	if err != nil {
		return nil, samples.Ref{}, err
	}
	return &samples.Sample{Name: res.Name, NodeTree: res.NodeTree},
		samples.Ref{ID: res.ID, Name: res.Name, Version: res.Version}, nil
}

type validateParams struct {
	Samples []wireSample `json:"samples"`
}

type validateResult struct {
	Errors []struct {
		Message    string `json:"message"`
		SampleName string `json:"sample_name"`
		Node       string `json:"node"`
		Key        string `json:"key"`
		SubKey     string `json:"subkey"`
	} `json:"errors"`
}

// Validate runs server-side schema validation over the batch. Returned
// entries are error-severity diagnostics keyed by sample name; positions are
// back-filled by the caller.
func (c *Client) Validate(ctx context.Context, batch []*samples.Sample) ([]diagnostics.Diagnostic, error) {
	wires := make([]wireSample, len(batch))
	for i, s := range batch {
		wires[i] = wireSample{Name: s.Name, NodeTree: s.NodeTree}
	}

	var res validateResult
	if err := c.call(ctx, "SampleService.validate_samples", validateParams{Samples: wires}, &res); err != nil {
		return nil, err
	}

	out := make([]diagnostics.Diagnostic, 0, len(res.Errors))
	for _, e := range res.Errors {
		out = append(out, diagnostics.Diagnostic{
			Message:    e.Message,
			Severity:   diagnostics.SeverityError,
			SampleName: e.SampleName,
			Node:       e.Node,
			Key:        e.Key,
			SubKey:     e.SubKey,
		})
	}
	return out, nil
}

type replaceACLsParams struct {
	ID   string `json:"id"`
	ACLs ACLs   `json:"acls"`
}

// ReplaceACLs replaces a sample's access control lists.
func (c *Client) ReplaceACLs(ctx context.Context, id string, acls ACLs) error {
	return c.call(ctx, "SampleService.replace_sample_acls", replaceACLsParams{ID: id, ACLs: acls}, nil)
}

type wizardParams struct {
	ModuleName string `json:"module_name"`
	Version    string `json:"version"`
}

type wizardResult struct {
	URL string `json:"url"`
}

// DiscoverURL resolves the record store's endpoint through the service
// wizard.
func DiscoverURL(ctx context.Context, wizardURL string) (string, error) {
	payload := rpcRequest{
		Method:  "ServiceWizard.get_service_status",
		ID:      uuid.NewString(),
		Params:  []any{wizardParams{ModuleName: "SampleService", Version: "release"}},
		Version: "1.1",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "encoding service wizard request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wizardURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building service wizard request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.WrapAPI("ServiceWizard", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.WrapAPI("ServiceWizard", resp.StatusCode, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", errors.Wrap(err, "decoding service wizard response")
	}
	if decoded.Error != nil {
		return "", errors.NewAPIError("ServiceWizard", resp.StatusCode, decoded.Error.Message)
	}
	if len(decoded.Result) == 0 {
		return "", errors.NewAPIError("ServiceWizard", resp.StatusCode, "empty result")
	}

	var res wizardResult
	if err := json.Unmarshal(decoded.Result[0], &res); err != nil {
		return "", errors.Wrap(err, "decoding service wizard result")
	}
	return res.URL, nil
}
