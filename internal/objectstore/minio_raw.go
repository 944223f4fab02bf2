package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// MinioRaw adapts *minio.Client to the Raw interface, translating S3 error
// codes onto the sentinel errors classify.go understands.
type MinioRaw struct {
	Client *minio.Client
}

// NewMinioRaw constructs a MinioRaw backed by an already-configured
// *minio.Client (see pkg/config for endpoint/credential wiring).
func NewMinioRaw(client *minio.Client) *MinioRaw {
	return &MinioRaw{Client: client}
}

// PutObject enforces Create/Update preconditions with a Stat immediately
// before the write. Native S3 conditional-write headers (If-Match /
// If-None-Match on PUT) would make this atomic server-side; this adapter
// predates broad backend support for that header pair, so the precondition
// window here is a known gap against a genuinely concurrent multi-writer S3
// backend — see DESIGN.md. The object-store's sole writer in this pipeline
// is the segmenter/grouper (spec.md 4.G), so in practice only one process
// ever calls PutObject with Create/Update for a given key at a time.
func (m *MinioRaw) PutObject(ctx context.Context, bucket, object string, body []byte, contentType string, mode PutMode, expectedETag string) (string, error) {
	if mode != Overwrite {
		info, err := m.Client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
		exists := err == nil
		if mode == Create && exists {
			return "", fmt.Errorf("%w: %v", ErrPrecondition, errObjectExists)
		}
		if mode == Update {
			if !exists {
				return "", fmt.Errorf("%w: %v", ErrPrecondition, errObjectMissing)
			}
			if info.ETag != expectedETag {
				return "", fmt.Errorf("%w: %v", ErrPrecondition, errETagMismatch)
			}
		}
	}

	info, err := m.Client.PutObject(ctx, bucket, object, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", translate(err)
	}
	return info.ETag, nil
}

func (m *MinioRaw) GetObject(ctx context.Context, bucket, object string) ([]byte, string, error) {
	obj, err := m.Client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", translate(err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, "", translate(err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, obj); err != nil {
		return nil, "", translate(err)
	}
	return buf.Bytes(), info.ETag, nil
}

func (m *MinioRaw) StatObject(ctx context.Context, bucket, object string) (string, bool, error) {
	info, err := m.Client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return "", false, nil
		}
		return "", false, translate(err)
	}
	return info.ETag, true, nil
}

func (m *MinioRaw) RemoveObject(ctx context.Context, bucket, object string) error {
	if err := m.Client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return translate(err)
	}
	return nil
}

func (m *MinioRaw) ListObjects(ctx context.Context, bucket, prefix string) ([]string, error) {
	var out []string
	for info := range m.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, translate(info.Err)
		}
		out = append(out, info.Key)
	}
	return out, nil
}

func (m *MinioRaw) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.Client.BucketExists(ctx, bucket)
	if err != nil {
		return translate(err)
	}
	if exists {
		return nil
	}
	if err := m.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return translate(err)
	}
	return nil
}

// translate maps an S3 error code onto one of the objectstore sentinels so
// classifyErr can recover the taxonomy regardless of transport.
func translate(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case "PreconditionFailed":
		return fmt.Errorf("%w: %v", ErrPrecondition, err)
	case "NotModified":
		return fmt.Errorf("%w: %v", ErrNotModified, err)
	default:
		return err
	}
}
