// utils/storage.go
package utils

import (
	"context"
	"errors"
	"fmt"

	"cleanup-game-system/models"
)

// StorageClient is what every provider backend exposes to the file
// handlers: enumerate deletable items, soft-delete one of them. The core
// never sees this interface; it only receives already-resolved
// (userId, itemName, size) tuples after a delete succeeded here.
type StorageClient interface {
	ListItems(ctx context.Context) ([]models.StorageItem, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// ErrProviderAuth marks token problems (expired/missing/insufficient), so
// handlers can answer 401/403 instead of 502.
var ErrProviderAuth = errors.New("storage provider rejected the access token")

// Provider names accepted on join.
const (
	ProviderGraph  = "graph"
	ProviderDrive  = "drive"
	ProviderBucket = "bucket"
)

// NewStorageClient resolves a provider name plus a participant's delegated
// token into a client. The bucket provider ignores the token; it is backed
// by service credentials and used for sessions without cloud logins.
func NewStorageClient(provider, accessToken string) (StorageClient, error) {
	switch provider {
	case ProviderGraph:
		if accessToken == "" {
			return nil, ErrProviderAuth
		}
		return NewGraphClient(accessToken), nil
	case ProviderDrive:
		if accessToken == "" {
			return nil, ErrProviderAuth
		}
		return NewDriveClient(accessToken), nil
	case ProviderBucket:
		if bucketClient == nil {
			return nil, fmt.Errorf("bucket provider not configured")
		}
		return bucketClient, nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}
