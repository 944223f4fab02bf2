// Command dnaindex is the offline debug CLI for a dnaindex deployment's
// object store, per SPEC_FULL.md §6.6: inspect segment fragment files
// directly, or repair a group that was never flushed, without going
// through the network layer at all. Built with github.com/spf13/cobra,
// the teacher's CLI library (cmd/synnergy, cmd/cli/*).
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dnaindex/internal/bitmapindex"
	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/compaction"
	"dnaindex/internal/fragment"
	"dnaindex/internal/objectstore"
	"dnaindex/pkg/config"
)

func main() {
	root := &cobra.Command{Use: "dnaindex"}
	root.AddCommand(dbgCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func dbgCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dbg"}
	cmd.AddCommand(segmentCmd())
	return cmd
}

func segmentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "segment"}
	cmd.AddCommand(textDumpCmd())
	cmd.AddCommand(createGroupCmd())
	return cmd
}

func openStore() (*blockstore.Store, chainmodel.SegmentOptions, chainmodel.ChainFamily, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, chainmodel.SegmentOptions{}, 0, fmt.Errorf("load config: %w", err)
	}
	family, err := chainmodel.ParseChainFamily(cfg.Chain.Family)
	if err != nil {
		return nil, chainmodel.SegmentOptions{}, 0, err
	}
	opts := chainmodel.SegmentOptions{
		StartingBlock: cfg.Chain.StartingBlock,
		SegmentSize:   cfg.Chain.SegmentSize,
		GroupSize:     cfg.Chain.GroupSize,
	}
	minioClient, err := minio.New(cfg.ObjectStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey, ""),
		Secure: cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return nil, chainmodel.SegmentOptions{}, 0, fmt.Errorf("minio client: %w", err)
	}
	log := logrus.NewEntry(logrus.StandardLogger())
	osClient := objectstore.New(objectstore.NewMinioRaw(minioClient), cfg.ObjectStore.Bucket, log)
	return blockstore.New(osClient, blockstore.Options{}), opts, family, nil
}

func textDumpCmd() *cobra.Command {
	var segmentFirst uint64
	cmd := &cobra.Command{
		Use:   "text-dump",
		Short: "print the header fragment of a segment as text",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, _, err := openStore()
			if err != nil {
				return err
			}
			ctx := context.Background()
			raw, err := store.GetSegment(ctx, segmentFirst, chainmodel.FragmentHeader.Name())
			if err != nil {
				return fmt.Errorf("load header segment %d: %w", segmentFirst, err)
			}
			rs := fragment.OpenHeaderRowSet(raw)
			for i := 0; i < rs.Len(); i++ {
				h := rs.AsHeader(uint32(i))
				fmt.Printf("block %d hash=%s parent=%s ts=%d\n",
					h.Number(), hex.EncodeToString(h.Hash()), hex.EncodeToString(h.ParentHash()), h.Timestamp())
			}
			return nil
		},
	}
	cmd.Flags().Uint64Var(&segmentFirst, "segment-first", 0, "first block number of the segment to dump")
	cmd.MarkFlagRequired("segment-first")
	return cmd
}

func createGroupCmd() *cobra.Command {
	var groupFirst uint64
	cmd := &cobra.Command{
		Use:   "create-group",
		Short: "rebuild and write a group index file from already-written segments",
		Long: "Replays every block already folded into the segments spanning " +
			"one group, reconstructing the bitmap index group compaction " +
			"would otherwise have written at the group boundary. For " +
			"recovering from a crash between the last segment write and the " +
			"group flush in internal/compaction.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, opts, family, err := openStore()
			if err != nil {
				return err
			}
			ctx := context.Background()
			group, err := compaction.ReplayGroup(ctx, store, family, groupFirst, opts)
			if err != nil {
				return err
			}
			data, err := bitmapindex.EncodeIndexGroup(group)
			if err != nil {
				return fmt.Errorf("encode group %d: %w", groupFirst, err)
			}
			if _, err := store.PutGroup(ctx, groupFirst, data); err != nil {
				return fmt.Errorf("write group %d: %w", groupFirst, err)
			}
			fmt.Printf("group %d written\n", groupFirst)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&groupFirst, "group-first", 0, "first block number of the group to rebuild")
	cmd.MarkFlagRequired("group-first")
	return cmd
}
