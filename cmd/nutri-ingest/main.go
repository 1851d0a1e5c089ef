// Package main 语料摄取入口：
// 读取原始产物，分配内容单元 id，写出快照，并构建摘要向量索引。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Rogan-afk/NutriNephra/internal/application/retrieval"
	"github.com/Rogan-afk/NutriNephra/internal/config"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/embedding"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/docstore"
	"github.com/Rogan-afk/NutriNephra/internal/infrastructure/persistence/milvus"
	"github.com/Rogan-afk/NutriNephra/pkg/logger"
)

func main() {
	rawDir := flag.String("raw", "./raw_artifacts", "directory with raw payload and summary artifacts")
	outDir := flag.String("out", "", "snapshot output directory (defaults to store.snapshot_dir)")
	skipIndex := flag.Bool("skip-index", false, "write the snapshot without building the summary index")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx := context.Background()

	dir := *outDir
	if dir == "" {
		dir = cfg.Store.SnapshotDir
	}

	// 构建快照
	snap, err := docstore.BuildSnapshot(*rawDir)
	if err != nil {
		logger.Fatal(ctx, "failed to build snapshot", err)
	}
	if err := docstore.WriteSnapshot(dir, snap); err != nil {
		logger.Fatal(ctx, "failed to write snapshot", err)
	}
	logger.Info(ctx, "snapshot written", "dir", dir, "units", len(snap.Units))

	if *skipIndex {
		return
	}

	// 构建摘要索引
	milvusClient, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Fatal(ctx, "failed to init milvus", err)
	}
	defer func() { _ = milvusClient.Close() }()

	embedder, err := embedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Fatal(ctx, "failed to init embedder", err)
	}

	indexer := retrieval.NewIndexer(embedder,
		milvus.NewSummaryIndexAdapter(milvus.NewRepository(milvusClient)),
		cfg.Embedding.BatchSize)

	n, err := indexer.Run(ctx, snap.Units, snap.Summaries)
	if err != nil {
		logger.Fatal(ctx, "failed to build summary index", err)
	}
	logger.Info(ctx, "ingest finished", "indexed", n)
}
