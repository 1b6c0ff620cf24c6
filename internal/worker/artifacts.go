package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitecloner/api/internal/client"
)

// StorageArtifacts publishes completed clone documents to object storage.
type StorageArtifacts struct {
	storage client.StorageClient
}

// NewStorageArtifacts wraps a storage client as a pipeline ArtifactStore.
func NewStorageArtifacts(storage client.StorageClient) *StorageArtifacts {
	return &StorageArtifacts{storage: storage}
}

// Publish uploads the finished document under clones/<session_id>/index.html
// and returns its public URL.
func (a *StorageArtifacts) Publish(ctx context.Context, sessionID, html string) (string, error) {
	if a == nil || a.storage == nil {
		return "", nil
	}
	key := fmt.Sprintf("clones/%s/index.html", sessionID)
	return a.storage.Upload(ctx, key, strings.NewReader(html), "text/html; charset=utf-8")
}
