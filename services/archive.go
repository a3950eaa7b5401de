// services/archive.go
package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ArchiveClient mirrors every committed content file into an R2 bucket. The
// canonical copy lives in the site repository; this is a best-effort second
// copy for recovery and tooling.
type ArchiveClient struct {
	client *s3.Client
	bucket string
}

// NewArchiveClientFromEnv builds the archive client when the R2 environment
// is configured, or returns nil (archiving disabled).
func NewArchiveClientFromEnv() *ArchiveClient {
	accountID := os.Getenv("CLOUDFLARE_ACCOUNT_ID")
	accessKeyID := os.Getenv("R2_ACCESS_KEY_ID")
	accessKeySecret := os.Getenv("R2_ACCESS_KEY_SECRET")
	bucket := os.Getenv("R2_BUCKET_NAME")
	if accountID == "" || accessKeyID == "" || accessKeySecret == "" || bucket == "" {
		return nil
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
		log.Printf("⚠️ [ARCHIVE] R2 config failed, archiving disabled: %v", err)
		return nil
	}

	return &ArchiveClient{client: s3.NewFromConfig(cfg), bucket: bucket}
}

// Mirror stores a copy of the committed file under archive/<path>. Safe to
// call on a nil client. Failures are logged, never surfaced.
func (a *ArchiveClient) Mirror(filePath, content string) {
	if a == nil {
		return
	}
	key := "archive/" + filePath
	_, err := a.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/markdown"),
	})
	if err != nil {
		log.Printf("⚠️ [ARCHIVE] mirror of %s failed: %v", filePath, err)
	}
}
