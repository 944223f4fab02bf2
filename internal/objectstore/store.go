// Package objectstore implements the compressed, checksummed,
// optimistic-concurrency object client described in spec.md 4.A. It is the
// lowest layer of the pipeline: everything else (blockstore, compaction,
// snapshot) goes through a Client.
package objectstore

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PutMode selects the optimistic-concurrency precondition for Put.
type PutMode int

const (
	// Overwrite writes unconditionally.
	Overwrite PutMode = iota
	// Create requires the object to be absent (If-None-Match: *).
	Create
	// Update requires the object's current ETag to match (If-Match).
	Update
)

// PutOptions configures a Put call.
type PutOptions struct {
	Mode PutMode
	// ETag is required when Mode == Update.
	ETag string
}

// GetOptions configures a Get call.
type GetOptions struct {
	// IfMatchETag, if set, fails the read with KindPrecondition when the
	// stored object's current ETag differs, per spec.md 4.A's If-Match
	// read path.
	IfMatchETag string
}

// Object is the result of a successful Get: the decoded payload and the
// object's current ETag (for later Update calls).
type Object struct {
	Body []byte
	ETag string
}

// Hook receives a span-like callback around every call, per spec.md 4.A's
// "observability hooks: span around each call; record compression ratio".
type Hook func(op, path string, dur time.Duration, compressionRatio float64, err error)

// Raw is the minimal S3-compatible transport Client needs: get/put/delete/
// list plus a stat for existence/ETag checks. The production implementation
// (Minio) wraps *minio.Client; tests substitute an in-memory fake.
type Raw interface {
	// PutObject writes body under the given precondition. Implementations
	// must enforce the precondition atomically with the write (the way a
	// real S3-compatible backend enforces If-Match/If-None-Match
	// server-side) so that of two concurrent Create calls for the same
	// object, exactly one succeeds.
	PutObject(ctx context.Context, bucket, object string, body []byte, contentType string, mode PutMode, expectedETag string) (etag string, err error)
	GetObject(ctx context.Context, bucket, object string) (body []byte, etag string, err error)
	StatObject(ctx context.Context, bucket, object string) (etag string, exists bool, err error)
	RemoveObject(ctx context.Context, bucket, object string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]string, error)
	EnsureBucket(ctx context.Context, bucket string) error
}

// Client is the object-store capability consumed by the rest of the
// pipeline (spec.md 4.A).
type Client struct {
	raw    Raw
	bucket string
	log    *logrus.Entry
	hook   Hook
}

// New wraps a Raw transport (normally the Minio adapter) bound to one
// bucket.
func New(raw Raw, bucket string, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{raw: raw, bucket: bucket, log: log.WithField("component", "objectstore")}
}

// WithHook attaches an observability hook and returns the client for
// chaining.
func (c *Client) WithHook(h Hook) *Client {
	c.hook = h
	return c
}

func (c *Client) observe(op, path string, start time.Time, ratio float64, err error) {
	dur := time.Since(start)
	if c.hook != nil {
		c.hook(op, path, dur, ratio, err)
	}
	fields := logrus.Fields{"op": op, "path": path, "duration_ms": dur.Milliseconds()}
	if err != nil {
		c.log.WithFields(fields).WithError(err).Debug("objectstore call failed")
		return
	}
	c.log.WithFields(fields).WithField("compression_ratio", ratio).Trace("objectstore call")
}

// EnsureBucket creates the bucket if it does not already exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	start := time.Now()
	err := c.raw.EnsureBucket(ctx, c.bucket)
	var wrapped error
	if err != nil {
		wrapped = newErr(KindRequest, c.bucket, err)
	}
	c.observe("ensure_bucket", c.bucket, start, 0, wrapped)
	if wrapped != nil {
		return wrapped
	}
	return nil
}

// Get fetches and decodes an object.
func (c *Client) Get(ctx context.Context, path string, opts GetOptions) (Object, error) {
	start := time.Now()

	if opts.IfMatchETag != "" {
		etag, exists, err := c.raw.StatObject(ctx, c.bucket, path)
		if err != nil {
			wrapped := classifyErr(path, err)
			c.observe("get", path, start, 0, wrapped)
			return Object{}, wrapped
		}
		if !exists {
			wrapped := newErr(KindNotFound, path, errObjectMissing)
			c.observe("get", path, start, 0, wrapped)
			return Object{}, wrapped
		}
		if etag != opts.IfMatchETag {
			wrapped := newErr(KindPrecondition, path, errETagMismatch)
			c.observe("get", path, start, 0, wrapped)
			return Object{}, wrapped
		}
	}

	wire, etag, err := c.raw.GetObject(ctx, c.bucket, path)
	if err != nil {
		wrapped := classifyErr(path, err)
		c.observe("get", path, start, 0, wrapped)
		return Object{}, wrapped
	}

	payload, err := decodePayload(wire)
	if err != nil {
		kind := KindRequest
		if isChecksumErr(err) {
			kind = KindChecksumMismatch
		}
		wrapped := newErr(kind, path, err)
		c.observe("get", path, start, 0, wrapped)
		return Object{}, wrapped
	}

	ratio := compressionRatio(len(payload), len(wire))
	c.observe("get", path, start, ratio, nil)
	return Object{Body: payload, ETag: etag}, nil
}

// Put encodes and writes an object under the precondition given by
// opts.Mode. Create maps to If-None-Match: *, Update(etag) to If-Match;
// both are enforced atomically by the Raw implementation (see Raw's
// PutObject doc) so concurrent Create callers race safely: exactly one
// succeeds, per spec.md scenario S4.
func (c *Client) Put(ctx context.Context, path string, payload []byte, opts PutOptions) (string, error) {
	start := time.Now()

	wire, err := encodePayload(payload)
	if err != nil {
		wrapped := newErr(KindRequest, path, err)
		c.observe("put", path, start, 0, wrapped)
		return "", wrapped
	}

	etag, err := c.raw.PutObject(ctx, c.bucket, path, wire, "application/zstd", opts.Mode, opts.ETag)
	if err != nil {
		wrapped := classifyErr(path, err)
		c.observe("put", path, start, 0, wrapped)
		return "", wrapped
	}

	ratio := compressionRatio(len(payload), len(wire))
	c.observe("put", path, start, ratio, nil)
	return etag, nil
}

// Delete removes an object. Deleting an absent object is not an error.
func (c *Client) Delete(ctx context.Context, path string) error {
	start := time.Now()
	err := c.raw.RemoveObject(ctx, c.bucket, path)
	var wrapped error
	if err != nil {
		wrapped = classifyErr(path, err)
	}
	c.observe("delete", path, start, 0, wrapped)
	if wrapped != nil {
		return wrapped
	}
	return nil
}

// List enumerates object paths under prefix.
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	start := time.Now()
	out, err := c.raw.ListObjects(ctx, c.bucket, prefix)
	var wrapped error
	if err != nil {
		wrapped = classifyErr(prefix, err)
	}
	c.observe("list", prefix, start, 0, wrapped)
	if wrapped != nil {
		return nil, wrapped
	}
	return out, nil
}
