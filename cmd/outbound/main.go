package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"outbound/internal"
	"outbound/internal/catalog"
	"outbound/internal/config"
	"outbound/internal/listener"
	"outbound/internal/llm"
	"outbound/internal/pipeline"
	"outbound/internal/slack"
	"outbound/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := os.Args[1]

	switch cmd {
	case "fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "start date YYYY-MM-DD (default: previous business day)")
		end := fs.String("end", "", "end date YYYY-MM-DD")
		out := fs.String("out", "threads.json", "output JSON path")
		_ = fs.Parse(os.Args[2:])

		must(cfg.Require("SLACK_BOT_TOKEN", cfg.SlackBotToken))
		must(cfg.Require("SLACK_CHANNEL_ID", cfg.SlackChannelID))

		oldest, latest, err := resolveWindow(*start, *end)
		must(err)

		client := slack.NewClient(cfg)
		records, err := client.FetchThreads(ctx, oldest, latest)
		must(err)
		must(saveThreads(records, *out))
		fmt.Printf("fetched threads=%d window=%s..%s out=%s\n",
			len(records), oldest.Format("2006-01-02"), latest.Format("2006-01-02"), *out)

	case "process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "threads.json", "thread records JSON")
		snapshot := fs.String("snapshot", "", "aggregation snapshot path (default: <output dir>/aggregated.json)")
		_ = fs.Parse(os.Args[2:])

		records, err := loadThreads(*input)
		must(err)

		batch, svcClose := makeBatchService(cfg)
		defer svcClose()

		result, err := batch.ProcessThreads(ctx, records)
		must(err)

		path := *snapshot
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "aggregated.json")
		}
		must(pipeline.SaveSnapshot(result.Result, result.Report, path))
		fmt.Print(pipeline.SummaryReport(result.Result, result.Report))
		fmt.Printf("snapshot written: %s\n", path)

	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		snapshot := fs.String("snapshot", "", "aggregation snapshot path")
		out := fs.String("out", "", "output directory (default: OUTPUT_DIR)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*snapshot) == "" {
			must(fmt.Errorf("--snapshot is required"))
		}

		snap, err := pipeline.LoadSnapshot(*snapshot)
		must(err)

		dir := *out
		if dir == "" {
			dir = cfg.OutputDir
		}
		files, err := pipeline.ExportBrandWorkbooks(snap.Result, snap.Report, cfg.WarehouseCode, dir)
		must(err)
		for _, f := range files {
			fmt.Printf("exported: %s\n", f)
		}

	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		start := fs.String("start", "", "start date YYYY-MM-DD (default: previous business day)")
		end := fs.String("end", "", "end date YYYY-MM-DD")
		_ = fs.Parse(os.Args[2:])

		must(cfg.Require("SLACK_BOT_TOKEN", cfg.SlackBotToken))
		must(cfg.Require("SLACK_CHANNEL_ID", cfg.SlackChannelID))

		oldest, latest, err := resolveWindow(*start, *end)
		must(err)

		client := slack.NewClient(cfg)
		records, err := client.FetchThreads(ctx, oldest, latest)
		must(err)

		batch, svcClose := makeBatchService(cfg)
		defer svcClose()

		result, err := batch.ProcessThreads(ctx, records)
		must(err)

		must(pipeline.SaveSnapshot(result.Result, result.Report, filepath.Join(cfg.OutputDir, "aggregated.json")))
		fmt.Print(pipeline.SummaryReport(result.Result, result.Report))

		files, err := pipeline.ExportBrandWorkbooks(result.Result, result.Report, cfg.WarehouseCode, cfg.OutputDir)
		must(err)
		for _, f := range files {
			fmt.Printf("exported: %s\n", f)
		}

	case "watch":
		must(cfg.Require("SLACK_BOT_TOKEN", cfg.SlackBotToken))
		must(cfg.Require("SLACK_CHANNEL_ID", cfg.SlackChannelID))
		must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))

		store, db := mustPipelineDeps(cfg)
		defer db.Close()

		svc := listener.NewService(cfg, db, store, llm.NewClient(cfg))
		must(svc.Run(ctx))

	case "runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs to list")
		_ = fs.Parse(os.Args[2:])

		db, err := storage.Open(cfg.DBPath)
		must(err)
		defer db.Close()

		rows, err := db.ListRuns(*limit)
		must(err)
		for _, row := range rows {
			fmt.Printf("run=%d trace=%s threads=%d items=%d products=%d passed=%v at=%s\n",
				row.ID, row.TraceID, row.Threads, row.Items, row.Products, row.Passed, row.CreatedAt)
		}

	default:
		usage()
		os.Exit(1)
	}
}

func makeBatchService(cfg config.Config) (*pipeline.BatchService, func()) {
	must(cfg.Require("OPENAI_API_KEY", cfg.OpenAIAPIKey))
	store, db := mustPipelineDeps(cfg)
	return pipeline.NewBatchService(cfg, db, store, llm.NewClient(cfg)), func() { _ = db.Close() }
}

// mustPipelineDeps loads the catalog and opens the audit store. An
// unreadable catalog is a configuration error and stops the run before
// any batch work starts.
func mustPipelineDeps(cfg config.Config) (*catalog.Store, *storage.DB) {
	data, err := catalog.Load(cfg.CatalogPath)
	must(err)
	store := catalog.NewStore(data)
	fmt.Printf("catalog loaded brands=%d products=%d\n", len(store.Brands()), store.ProductCount())

	db, err := storage.Open(cfg.DBPath)
	must(err)
	return store, db
}

func resolveWindow(start, end string) (time.Time, time.Time, error) {
	if strings.TrimSpace(start) == "" && strings.TrimSpace(end) == "" {
		oldest, latest := slack.DateWindow(time.Now())
		return oldest, latest, nil
	}
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--start and --end must be given together")
	}

	oldest, err := slack.ParseDay(start, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --start: %w", err)
	}
	endDay, err := slack.ParseDay(end, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --end: %w", err)
	}
	latest := endDay.AddDate(0, 0, 1).Add(-time.Second)
	if latest.Before(oldest) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end is before --start")
	}
	return oldest, latest, nil
}

func saveThreads(records []internal.ThreadRecord, path string) error {
	blob, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, blob, 0o644)
}

func loadThreads(path string) ([]internal.ThreadRecord, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []internal.ThreadRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("parse thread records: %w", err)
	}
	return records, nil
}

func usage() {
	fmt.Println(`usage: outbound <command> [flags]

commands:
  fetch        collect Slack threads for a date window into JSON
  process      run extraction, matching and aggregation over fetched threads
  export:xlsx  write per-brand order workbooks from an aggregation snapshot
  run          fetch + process + export in one pass
  watch        poll the channel and process new messages continuously
  runs         list recorded batch runs`)
}

func must(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
