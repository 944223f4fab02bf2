package provider

import (
	"context"
	"testing"
)

func TestFakeProviderSeedAndReorg(t *testing.T) {
	ctx := context.Background()
	p := NewFakeProvider()
	p.SeedBlock(RawBlock{Number: 10, Hash: []byte{0x0a}})
	p.SeedBlock(RawBlock{Number: 11, Hash: []byte{0x0b}})
	p.SetFinalized(10)

	head, err := p.GetHead(ctx)
	if err != nil || head.Number != 11 {
		t.Fatalf("expected head 11, got %v err=%v", head, err)
	}
	fin, err := p.GetFinalized(ctx)
	if err != nil || fin.Number != 10 {
		t.Fatalf("expected finalized 10, got %v err=%v", fin, err)
	}

	p.Reorg(11, []RawBlock{{Number: 11, Hash: []byte{0xff}}})
	got, err := p.GetBlockByNumber(ctx, 11)
	if err != nil {
		t.Fatalf("get block 11: %v", err)
	}
	if string(got.Hash) != string([]byte{0xff}) {
		t.Fatalf("expected reorged hash, got %x", got.Hash)
	}
	if _, err := p.GetBlockByHash(ctx, []byte{0x0b}); err == nil {
		t.Fatal("expected old hash to be gone after reorg")
	}
}

func TestHexHelpers(t *testing.T) {
	if hexToUint64("0x64") != 100 {
		t.Fatalf("expected 100, got %d", hexToUint64("0x64"))
	}
	if hexToUint64("") != 0 {
		t.Fatal("expected 0 for empty hex string")
	}
	if got := hexToBytes("0xdead"); string(got) != string([]byte{0xde, 0xad}) {
		t.Fatalf("unexpected bytes: %x", got)
	}
	if blockNumberParam(255) != "0xff" {
		t.Fatalf("unexpected block number param: %s", blockNumberParam(255))
	}
}

func TestRPCBlockToRawBlock(t *testing.T) {
	blk := rpcBlock{
		Number:     "0x64",
		Hash:       "0xaa",
		ParentHash: "0xbb",
		Timestamp:  "0x5",
		Transactions: []rpcTx{
			{Hash: "0x01", Nonce: "0x1", From: "0xaaaa", Gas: "0x5208", Type: "0x2"},
		},
		Withdrawals: []rpcWthdl{
			{Index: "0x1", ValidatorIndex: "0x2", Address: "0xcc", Amount: "0x10"},
		},
	}
	raw := blk.toRawBlock()
	if raw.Number != 100 {
		t.Fatalf("expected number 100, got %d", raw.Number)
	}
	if len(raw.Transactions) != 1 || raw.Transactions[0].Gas != 0x5208 {
		t.Fatalf("unexpected transactions: %+v", raw.Transactions)
	}
	if len(raw.Withdrawals) != 1 || raw.Withdrawals[0].Amount != 16 {
		t.Fatalf("unexpected withdrawals: %+v", raw.Withdrawals)
	}
}
