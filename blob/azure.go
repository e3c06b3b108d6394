package blob

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzureStore uploads artifacts to an Azure Blob Storage container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore connects with a connection string and targets the
// given container. The container must already exist.
func NewAzureStore(connectionString, container string) (*AzureStore, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &AzureStore{client: client, container: container}, nil
}

// Upload streams the file into the container and returns its blob URL.
func (s *AzureStore) Upload(ctx context.Context, key, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	if _, err := s.client.UploadFile(ctx, s.container, key, f, nil); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	base := strings.TrimSuffix(s.client.URL(), "/")
	return fmt.Sprintf("%s/%s/%s", base, s.container, key), nil
}
