package access

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

// WorkspaceClient queries the workspace service for permissions.
type WorkspaceClient struct {
	url   string
	token string
	http  *http.Client
}

// NewWorkspaceClient creates a workspace service client.
func NewWorkspaceClient(url, token string) *WorkspaceClient {
	return &WorkspaceClient{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: 60 * time.Second},
	}
}

type permsRequest struct {
	Method  string `json:"method"`
	ID      string `json:"id"`
	Params  []any  `json:"params"`
	Version string `json:"version"`
}

type permsResponse struct {
	Result []struct {
		Perms []map[string]string `json:"perms"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Permissions implements PermissionSource against
// Workspace.get_permissions_mass.
func (c *WorkspaceClient) Permissions(ctx context.Context, workspaceID int) (map[string]string, error) {
	payload := permsRequest{
		Method: "Workspace.get_permissions_mass",
		ID:     uuid.NewString(),
		Params: []any{map[string]any{
			"workspaces": []map[string]int{{"id": workspaceID}},
		}},
		Version: "1.1",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding workspace request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "building workspace request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.WrapAPI("Workspace", 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapAPI("Workspace", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError("Workspace", resp.StatusCode, string(raw))
	}

	var decoded permsResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Wrap(err, "decoding workspace response")
	}
	if decoded.Error != nil {
		return nil, errors.NewAPIError("Workspace", resp.StatusCode, decoded.Error.Message)
	}
	if len(decoded.Result) == 0 || len(decoded.Result[0].Perms) == 0 {
		return nil, errors.NewAPIError("Workspace", resp.StatusCode, "empty permissions result")
	}
	return decoded.Result[0].Perms[0], nil
}
