package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore stores objects on MinIO or another S3-compatible service via minio-go.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	region        string
	publicPrefix  string
	publicBaseURL string
	endpointURL   string

	mu            sync.Mutex
	bucketReady   bool
	policyApplied bool
}

// NewMinioStore constructs the store. The endpoint may include a scheme.
func NewMinioStore(endpoint, accessKey, secretKey, bucket, region string, useSSL bool, publicPrefix, publicBaseURL string) (*MinioStore, error) {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(endpoint)), "https") {
		useSSL = true
	}
	host := sanitizeEndpoint(endpoint)
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure:       useSSL,
		Region:       region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return &MinioStore{
		client:        client,
		bucket:        bucket,
		region:        region,
		publicPrefix:  publicPrefix,
		publicBaseURL: publicBaseURL,
		endpointURL:   scheme + "://" + host,
	}, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		s.bucketReady = true
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	s.bucketReady = true
	return nil
}

// StreamUpload streams r into the bucket.
func (s *MinioStore) StreamUpload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (ObjectRef, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return ObjectRef{}, fmt.Errorf("ensure bucket: %w", err)
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: size >= 0 && size < 5*1024*1024,
	})
	if err != nil {
		return ObjectRef{}, fmt.Errorf("failed to put object: %w", err)
	}
	return ObjectRef{
		Bucket:      s.bucket,
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		ETag:        info.ETag,
	}, nil
}

// MakePublic installs an anonymous read policy on the public prefix.
// MinIO has no object ACLs, so the policy is applied once per process and
// objects outside the prefix are rejected.
func (s *MinioStore) MakePublic(ctx context.Context, ref ObjectRef) error {
	if !strings.HasPrefix(ref.Key, s.publicPrefix) {
		return fmt.Errorf("object %q is outside public prefix %q", ref.Key, s.publicPrefix)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policyApplied {
		return nil
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, readOnlyPolicy(s.bucket, s.publicPrefix)); err != nil {
		return fmt.Errorf("failed to set bucket policy: %w", err)
	}
	s.policyApplied = true
	return nil
}

func (s *MinioStore) PublicURL(ref ObjectRef) string {
	if s.publicBaseURL != "" {
		return joinURL(s.publicBaseURL, ref.Key)
	}
	return joinURL(joinURL(s.endpointURL, ref.Bucket), ref.Key)
}

// Delete removes an object.
func (s *MinioStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func readOnlyPolicy(bucket, prefix string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s*"]}]}`, bucket, prefix)
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}
