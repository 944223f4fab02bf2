// Command dnaindexd is the long-running indexer daemon: it polls one
// chain family's provider, archives and compacts blocks into the
// content-addressed object store, and serves the status/debug HTTP
// surface. Wiring follows cmd/explorer/main.go's shape (godotenv +
// viper bootstrap, construct a service, start a server, block).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dnaindex/internal/blockstore"
	"dnaindex/internal/chainmodel"
	"dnaindex/internal/chainview"
	"dnaindex/internal/compaction"
	"dnaindex/internal/ingestion"
	"dnaindex/internal/objectstore"
	"dnaindex/internal/provider"
	"dnaindex/internal/snapshot"
	"dnaindex/internal/statusapi"
	"dnaindex/pkg/config"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logrus.SetLevel(lvl)
	}

	family, err := chainmodel.ParseChainFamily(cfg.Chain.Family)
	if err != nil {
		log.Fatalf("chain family: %v", err)
	}
	segOpts := chainmodel.SegmentOptions{
		StartingBlock: cfg.Chain.StartingBlock,
		SegmentSize:   cfg.Chain.SegmentSize,
		GroupSize:     cfg.Chain.GroupSize,
	}

	minioClient, err := minio.New(cfg.ObjectStore.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey, ""),
		Secure: cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		log.Fatalf("minio client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	osClient := objectstore.New(objectstore.NewMinioRaw(minioClient), cfg.ObjectStore.Bucket, log)
	if err := osClient.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	store := blockstore.New(osClient, blockstore.Options{})
	snaps := snapshot.New(osClient)
	bus := snapshot.NewBus()

	view := chainview.New(segOpts, segOpts.StartingBlock, 256)

	startBlock := segOpts.StartingBlock
	if snap, _, found, err := snaps.Read(ctx); err != nil {
		log.Fatalf("read snapshot: %v", err)
	} else if found {
		if snap.Segmented != nil {
			view.SetSegmentedBlock(*snap.Segmented)
			startBlock = *snap.Segmented + 1
		}
		if snap.Grouped != nil {
			view.SetGroupedBlock(*snap.Grouped)
		}
	}

	prov := provider.NewEthereumRPCProvider(cfg.Provider.Endpoint, 30*time.Second)

	engine := ingestion.New(prov, view, store, ingestion.Options{
		StartBlock:   startBlock,
		PollInterval: cfg.Provider.PollInterval,
		Workers:      cfg.Provider.Workers,
		RateLimit:    rate.Limit(cfg.Provider.RateLimit),
		RateBurst:    cfg.Provider.RateBurst,
		Log:          log,
	})

	compactor := compaction.New(view, store, snaps, bus, compaction.Options{
		SegmentOptions: segOpts,
		ChainFamily:    family,
		Log:            log,
	})

	srv := statusapi.NewServer(cfg.Server.StatusAddr, view, store, segOpts, log)

	errs := make(chan error, 3)
	go func() { errs <- engine.Run(ctx) }()
	go func() { errs <- compactor.Run(ctx, engine.Events()) }()
	go func() {
		log.Infof("status api listening on %s", cfg.Server.StatusAddr)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errs <- err
			return
		}
		errs <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
	case err := <-errs:
		if err != nil {
			log.WithError(err).Error("pipeline component exited")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("status api shutdown")
	}
}
