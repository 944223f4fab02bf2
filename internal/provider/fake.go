package provider

import (
	"context"
	"sync"
)

// FakeProvider is an in-memory Provider used by ingestion's tests:
// blocks are pre-seeded and head/finalized can be advanced (or rewound,
// to simulate a reorg) between polls.
type FakeProvider struct {
	mu        sync.Mutex
	blocks    map[uint64]RawBlock
	byHash    map[string]RawBlock
	head      BlockRef
	finalized BlockRef
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{blocks: map[uint64]RawBlock{}, byHash: map[string]RawBlock{}}
}

func (f *FakeProvider) SeedBlock(b RawBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[b.Number] = b
	f.byHash[string(b.Hash)] = b
	if b.Number >= f.head.Number {
		f.head = BlockRef{Number: b.Number, Hash: b.Hash}
	}
}

func (f *FakeProvider) SetFinalized(number uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.blocks[number]; ok {
		f.finalized = BlockRef{Number: number, Hash: b.Hash}
	}
}

// Reorg replaces every block from number onward (simulating a chain
// reorganization) and moves head to the new tip.
func (f *FakeProvider) Reorg(from uint64, replacement []RawBlock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := range f.blocks {
		if n >= from {
			delete(f.byHash, string(f.blocks[n].Hash))
			delete(f.blocks, n)
		}
	}
	for _, b := range replacement {
		f.blocks[b.Number] = b
		f.byHash[string(b.Hash)] = b
	}
	f.head = BlockRef{}
	for n, b := range f.blocks {
		if n >= f.head.Number {
			f.head = BlockRef{Number: n, Hash: b.Hash}
		}
	}
}

func (f *FakeProvider) GetHead(context.Context) (BlockRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *FakeProvider) GetFinalized(context.Context) (BlockRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finalized, nil
}

func (f *FakeProvider) GetBlockByNumber(_ context.Context, number uint64) (RawBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[number]
	if !ok {
		return RawBlock{}, newErr(KindNotFound, "get_block_by_number", nil)
	}
	return b, nil
}

func (f *FakeProvider) GetBlockByHash(_ context.Context, hash []byte) (RawBlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byHash[string(hash)]
	if !ok {
		return RawBlock{}, newErr(KindNotFound, "get_block_by_hash", nil)
	}
	return b, nil
}

var _ Provider = (*FakeProvider)(nil)
