package snapshot

import (
	"context"
	"errors"
	"fmt"

	"dnaindex/internal/chainmodel"
	"dnaindex/internal/objectstore"
)

// Store persists the singleton snapshot record at objectstore's "snapshot"
// key (spec.md 4.K). The segmenter/grouper is the pipeline's sole writer
// (spec.md 5's resource model); everything else only ever reads.
type Store struct {
	client *objectstore.Client
}

// New wraps an object-store client bound to the snapshot key.
func New(client *objectstore.Client) *Store {
	return &Store{client: client}
}

// Read fetches the current snapshot. A missing object is not an error: it
// means the pipeline has never run, and Read reports found=false so the
// caller can seed one via Create.
func (s *Store) Read(ctx context.Context) (snap chainmodel.Snapshot, etag string, found bool, err error) {
	obj, err := s.client.Get(ctx, Key, objectstore.GetOptions{})
	if err != nil {
		var oerr *objectstore.Error
		if errors.As(err, &oerr) && oerr.Kind == objectstore.KindNotFound {
			return chainmodel.Snapshot{}, "", false, nil
		}
		return chainmodel.Snapshot{}, "", false, fmt.Errorf("snapshot: read: %w", err)
	}
	snap, err = Decode(obj.Body)
	if err != nil {
		return chainmodel.Snapshot{}, "", false, err
	}
	return snap, obj.ETag, true, nil
}

// Create writes the initial snapshot record. It fails if one already
// exists, the same Create(If-None-Match) semantics objectstore.Client.Put
// enforces for every other content-addressed object.
func (s *Store) Create(ctx context.Context, snap chainmodel.Snapshot) (etag string, err error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}
	etag, err = s.client.Put(ctx, Key, data, objectstore.PutOptions{Mode: objectstore.Create})
	if err != nil {
		return "", fmt.Errorf("snapshot: create: %w", err)
	}
	return etag, nil
}

// Update writes a new snapshot revision guarded by the ETag the caller last
// observed. A caller that loses the race (ETag stale) gets back a
// KindPrecondition *objectstore.Error, which per spec.md 4.G's state
// machine is fatal for the segmenter: it means some other process wrote a
// conflicting snapshot and the segmenter's in-memory view of the world is
// no longer authoritative.
func (s *Store) Update(ctx context.Context, snap chainmodel.Snapshot, etag string) (newETag string, err error) {
	data, err := Encode(snap)
	if err != nil {
		return "", err
	}
	newETag, err = s.client.Put(ctx, Key, data, objectstore.PutOptions{Mode: objectstore.Update, ETag: etag})
	if err != nil {
		return "", fmt.Errorf("snapshot: update: %w", err)
	}
	return newETag, nil
}
