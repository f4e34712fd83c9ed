package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Provider abstracts the optional remote mirror of the published file set,
// keeping the pipeline independent of a specific blob store.
type Provider interface {
	// Save uploads data to a specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider is a storage provider that performs no operations. It is
// the default when no mirror bucket is configured.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}

// GCSProvider mirrors published files to a Google Cloud Storage bucket.
type GCSProvider struct {
	client *storage.Client
	bucket string
	logger *zap.Logger
}

// NewGCSProvider initializes a new GCS client and verifies the bucket is
// reachable. Authentication uses Application Default Credentials.
func NewGCSProvider(ctx context.Context, bucketName string, logger *zap.Logger) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}

	// Fail fast on startup if the bucket is misconfigured.
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("get GCS bucket %q attributes: %w", bucketName, err)
	}

	return &GCSProvider{
		client: client,
		bucket: bucketName,
		logger: logger,
	}, nil
}

// Save uploads the given data to a specific object in the GCS bucket.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	wc := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"

	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			g.logger.Warn("failed to close GCS writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write GCS object %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close GCS writer for object %s: %w", objectName, err)
	}
	return nil
}

// Close releases the underlying GCS client.
func (g *GCSProvider) Close() error {
	return g.client.Close()
}

// Mirror uploads the named files from dir to the provider, under an "api/"
// prefix matching the published layout. Mirror failures are reported but
// never corrupt the local snapshot, which is already on disk.
func Mirror(ctx context.Context, provider Provider, dir string, files []string, logger *zap.Logger) error {
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s for mirror: %w", name, err)
		}
		if err := provider.Save(ctx, path.Join("api", name), data); err != nil {
			return err
		}
		logger.Debug("mirrored document", zap.String("file", name))
	}
	return nil
}
