// utils/bucket.go
package utils

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cleanup-game-system/models"
)

var bucketClient *BucketClient

// BucketClient serves hosted sessions out of an S3-compatible bucket
// (R2 in production): everyone deletes from the same shared junk drawer,
// no cloud login required.
type BucketClient struct {
	client *s3.Client
	bucket string
	prefix string
}

// InitBucket wires the bucket provider from credentials. Call once at
// startup. Leaving every bucket variable unset disables the provider;
// setting only some of them is a startup error, not a deferred failure on
// the first player request.
func InitBucket(accountID, accessKeyID, accessKeySecret, bucket, prefix string) error {
	if accountID == "" && accessKeyID == "" && accessKeySecret == "" && bucket == "" {
		return nil // provider not configured, graph/drive still work
	}
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || bucket == "" {
		return fmt.Errorf("bucket provider misconfigured: account id, access key, secret and bucket name must all be set")
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKeyID, accessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{
					URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
				}, nil
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to load bucket config: %w", err)
	}

	bucketClient = &BucketClient{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}
	return nil
}

// ListItems enumerates objects under the cleanup prefix.
func (b *BucketClient) ListItems(ctx context.Context) ([]models.StorageItem, error) {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket objects: %w", err)
	}

	items := make([]models.StorageItem, 0, len(out.Contents))
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		if strings.HasSuffix(key, "/") {
			continue // directory placeholders
		}
		items = append(items, models.StorageItem{
			ID:        key,
			Name:      strings.TrimPrefix(key, b.prefix),
			Size:      aws.ToInt64(obj.Size),
			CanDelete: true,
		})
	}
	return items, nil
}

// DeleteItem removes one object. Keys outside the cleanup prefix are
// refused; the game must never reach the rest of the bucket.
func (b *BucketClient) DeleteItem(ctx context.Context, itemID string) error {
	if !strings.HasPrefix(itemID, b.prefix) {
		return fmt.Errorf("object key %q is outside the cleanup prefix", itemID)
	}
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(itemID),
	})
	if err != nil {
		return fmt.Errorf("failed to delete bucket object: %w", err)
	}
	return nil
}
