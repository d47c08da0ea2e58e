// Package s3 archives saved plans to an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"fitplanner/store"
)

type objectAPI interface {
	PutObject(ctx context.Context, params *awss3.PutObjectInput, optFns ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

var _ store.Archiver = (*Archiver)(nil)

type Archiver struct {
	bucket string
	prefix string
	s3     objectAPI
}

func NewArchiver(client objectAPI, bucket, prefix string) *Archiver {
	return &Archiver{
		bucket: bucket,
		prefix: prefix,
		s3:     client,
	}
}

func (a *Archiver) key(p store.StoredPlan) string {
	return path.Join(a.prefix, store.ArchiveKey(p))
}

// Archive uploads p as JSON and returns the object key.
func (a *Archiver) Archive(ctx context.Context, p store.StoredPlan) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode plan %s: %w", p.ID, err)
	}
	key := a.key(p)
	_, err = a.s3.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put plan object to S3: %w", err)
	}
	return key, nil
}

// Load fetches an archived plan by key.
func (a *Archiver) Load(ctx context.Context, key string) (store.StoredPlan, error) {
	var p store.StoredPlan
	resp, err := a.s3.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return p, fmt.Errorf("failed to get plan object from S3: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return p, fmt.Errorf("failed to read plan object: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode plan object: %w", err)
	}
	return p, nil
}
