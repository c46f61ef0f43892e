// utils/drive.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"cleanup-game-system/models"
)

const driveBaseURL = "https://www.googleapis.com/drive/v3"

const driveFolderMime = "application/vnd.google-apps.folder"

// DriveClient talks to Google Drive with the player's OAuth access token.
// Deleting is a soft delete: the file is moved to the Drive trash, exactly
// what the game promises players.
type DriveClient struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

func NewDriveClient(accessToken string) *DriveClient {
	return &DriveClient{
		BaseURL:     driveBaseURL,
		AccessToken: accessToken,
		HTTPClient:  HTTPClient,
	}
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Size         string `json:"size"` // Drive returns sizes as strings
	MimeType     string `json:"mimeType"`
	Capabilities *struct {
		CanTrash bool `json:"canTrash"`
	} `json:"capabilities"`
}

type driveListResponse struct {
	Files []driveFile `json:"files"`
}

// ListItems returns the user's non-trashed files.
func (d *DriveClient) ListItems(ctx context.Context) ([]models.StorageItem, error) {
	q := url.Values{}
	q.Set("q", "trashed = false")
	q.Set("pageSize", "100")
	q.Set("fields", "files(id,name,size,mimeType,capabilities/canTrash)")
	q.Set("corpora", "user")

	var out driveListResponse
	if err := d.do(ctx, http.MethodGet, "/files?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	items := make([]models.StorageItem, 0, len(out.Files))
	for _, f := range out.Files {
		size, _ := strconv.ParseInt(f.Size, 10, 64)
		canTrash := f.Capabilities == nil || f.Capabilities.CanTrash
		items = append(items, models.StorageItem{
			ID:        f.ID,
			Name:      f.Name,
			Size:      size,
			CanDelete: canTrash && f.MimeType != driveFolderMime,
		})
	}
	return items, nil
}

// DeleteItem sends the file to the Drive trash.
func (d *DriveClient) DeleteItem(ctx context.Context, itemID string) error {
	body := map[string]bool{"trashed": true}
	return d.do(ctx, http.MethodPatch, "/files/"+itemID, body, nil)
}

func (d *DriveClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Google Drive: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: drive returned %d", ErrProviderAuth, resp.StatusCode)
	case resp.StatusCode >= 300:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("drive %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode drive response: %w", err)
		}
	}
	return nil
}
