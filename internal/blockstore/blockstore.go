// Package blockstore implements the content-addressed block/segment/group
// layout described in spec.md 4.B, layered on internal/objectstore, with a
// bounded read-through cache.
package blockstore

import (
	"context"
	"encoding/hex"
	"fmt"

	"dnaindex/internal/chainmodel"
	"dnaindex/internal/objectstore"
)

// Store is the block-store capability consumed by ingestion, compaction
// and the scanner.
type Store struct {
	client *objectstore.Client
	cache  *lruCache
}

// Options configures a Store.
type Options struct {
	// CacheEntries bounds the in-memory read-through cache. Zero uses a
	// sane default.
	CacheEntries int
}

// New wraps an object-store client with the block/segment/group path
// layout and a read-through cache.
func New(client *objectstore.Client, opts Options) *Store {
	return &Store{
		client: client,
		cache:  newLRUCache(opts.CacheEntries),
	}
}

// blockPath renders the per-block key: blocks/{n}-{h}/block.
func blockPath(c chainmodel.Cursor) string {
	return fmt.Sprintf("blocks/%d-%s/block", c.OrderKey, hex.EncodeToString(c.UniqueKey))
}

// segmentPath renders the per-segment fragment key:
// segment/{first}/{fragment_name}.
func segmentPath(segmentFirst uint64, fragmentName string) string {
	return fmt.Sprintf("segment/%d/%s", segmentFirst, fragmentName)
}

// groupPath renders the per-group index key: group/{first}.
func groupPath(groupFirst uint64) string {
	return fmt.Sprintf("group/%d", groupFirst)
}

func (s *Store) readThrough(ctx context.Context, path string) ([]byte, error) {
	if data, ok := s.cache.get(path); ok {
		return data, nil
	}
	obj, err := s.client.Get(ctx, path, objectstore.GetOptions{})
	if err != nil {
		return nil, err
	}
	s.cache.put(path, obj.Body)
	return obj.Body, nil
}

func (s *Store) writeThrough(ctx context.Context, path string, body []byte, mode objectstore.PutMode) (string, error) {
	etag, err := s.client.Put(ctx, path, body, objectstore.PutOptions{Mode: mode})
	if err != nil {
		return "", err
	}
	s.cache.invalidate(path)
	return etag, nil
}

// GetBlock fetches the assembled per-block file for cursor.
func (s *Store) GetBlock(ctx context.Context, c chainmodel.Cursor) ([]byte, error) {
	return s.readThrough(ctx, blockPath(c))
}

// PutBlock writes the assembled per-block file for cursor. Ingestion may
// overwrite an existing block of the same cursor after a reorg
// re-ingests it, so Overwrite is the default precondition here.
func (s *Store) PutBlock(ctx context.Context, c chainmodel.Cursor, body []byte) (string, error) {
	return s.writeThrough(ctx, blockPath(c), body, objectstore.Overwrite)
}

// DeleteBlock removes the per-block file for cursor (used by compaction
// to drop blocks a reorg has removed from the canonical chain).
func (s *Store) DeleteBlock(ctx context.Context, c chainmodel.Cursor) error {
	path := blockPath(c)
	if err := s.client.Delete(ctx, path); err != nil {
		return err
	}
	s.cache.invalidate(path)
	return nil
}

// GetSegment fetches one fragment's file within a segment.
func (s *Store) GetSegment(ctx context.Context, segmentFirst uint64, fragmentName string) ([]byte, error) {
	return s.readThrough(ctx, segmentPath(segmentFirst, fragmentName))
}

// PutSegment writes one fragment's file within a segment. Segments are
// written exactly once by the segmenter under normal operation; Create
// catches an accidental double-write, while compaction's reorg recovery
// path (see DESIGN.md's Open Question entry) explicitly calls
// PutSegmentOverwrite when it must supersede one.
func (s *Store) PutSegment(ctx context.Context, segmentFirst uint64, fragmentName string, body []byte) (string, error) {
	return s.writeThrough(ctx, segmentPath(segmentFirst, fragmentName), body, objectstore.Create)
}

// PutSegmentOverwrite supersedes a previously written segment fragment
// file, used only by compaction's reorg recovery path.
func (s *Store) PutSegmentOverwrite(ctx context.Context, segmentFirst uint64, fragmentName string, body []byte) (string, error) {
	return s.writeThrough(ctx, segmentPath(segmentFirst, fragmentName), body, objectstore.Overwrite)
}

// GetGroup fetches a group's index file.
func (s *Store) GetGroup(ctx context.Context, groupFirst uint64) ([]byte, error) {
	return s.readThrough(ctx, groupPath(groupFirst))
}

// PutGroup writes a group's index file, following the same Create-by-default
// rule as PutSegment.
func (s *Store) PutGroup(ctx context.Context, groupFirst uint64, body []byte) (string, error) {
	return s.writeThrough(ctx, groupPath(groupFirst), body, objectstore.Create)
}

// CacheStats exposes cumulative hit/miss counters for internal/statusapi.
func (s *Store) CacheStats() (hits, misses uint64) {
	return s.cache.stats()
}
