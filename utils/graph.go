// utils/graph.go
package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"cleanup-game-system/models"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

// GraphClient talks to Microsoft Graph with a delegated (MSAL) token and
// exposes the player's OneDrive root as deletable items.
type GraphClient struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewGraphClient(accessToken string) *GraphClient {
	return &GraphClient{
		BaseURL:     graphBaseURL,
		AccessToken: accessToken,
		HTTPClient:  HTTPClient,
	}
}

type graphDriveItem struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
}

type graphListResponse struct {
	Value []graphDriveItem `json:"value"`
}

// ListItems returns the files in the drive root. Folders are listed as
// non-deletable so the client can render but not score them.
func (g *GraphClient) ListItems(ctx context.Context) ([]models.StorageItem, error) {
	var out graphListResponse
	if err := g.do(ctx, http.MethodGet, "/me/drive/root/children", &out); err != nil {
		return nil, err
	}

	items := make([]models.StorageItem, 0, len(out.Value))
	for _, it := range out.Value {
		items = append(items, models.StorageItem{
			ID:        it.ID,
			Name:      it.Name,
			Size:      it.Size,
			CanDelete: it.Folder == nil,
		})
	}
	return items, nil
}

// DeleteItem removes a drive item (Graph moves it to the recycle bin).
func (g *GraphClient) DeleteItem(ctx context.Context, itemID string) error {
	return g.do(ctx, http.MethodDelete, "/me/drive/items/"+itemID, nil)
}

// Me probes the token by fetching the signed-in user's profile. Used at
// join time when token validation is enabled.
func (g *GraphClient) Me(ctx context.Context) error {
	return g.do(ctx, http.MethodGet, "/me", nil)
}

func (g *GraphClient) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.AccessToken)

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Microsoft Graph: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: graph returned %d", ErrProviderAuth, resp.StatusCode)
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph %s %s: status %d: %s", method, path, resp.StatusCode, body)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode graph response: %w", err)
		}
	}
	return nil
}
