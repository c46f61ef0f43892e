package models

// StorageItem is one deletable item reported by a storage provider client.
// Sizes are provider-reported and trusted as-is.
type StorageItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	CanDelete bool   `json:"canDelete"`
}
