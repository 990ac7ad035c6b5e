package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// checksumMetadata is the object metadata key holding the snapshot's SHA-256.
const checksumMetadata = "dbr-sha256"

// S3Destination uploads the export to one object in an S3-compatible
// bucket. A snapshot identical to the last one uploaded is skipped.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string

	mu      sync.Mutex
	lastSum string
}

// NewS3Destination creates an S3 destination. A non-empty endpoint selects
// path-style addressing, as MinIO and other self-hosted stores expect.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 destination needs a bucket and key")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write puts the snapshot, tagging it with its checksum.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	d.mu.Lock()
	defer d.mu.Unlock()
	if digest == d.lastSum {
		return nil
	}

	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata:    map[string]string{checksumMetadata: digest},
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", d.Name(), err)
	}
	d.lastSum = digest
	return nil
}
