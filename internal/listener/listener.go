package listener

import (
	"context"
	"log"
	"strconv"
	"time"

	"outbound/internal/catalog"
	"outbound/internal/config"
	"outbound/internal/llm"
	"outbound/internal/pipeline"
	"outbound/internal/slack"
	"outbound/internal/storage"
)

// Service polls the Slack channel on an interval and runs the batch
// pipeline over messages that arrived since the previous cycle.
type Service struct {
	cfg    config.Config
	db     *storage.DB
	store  *catalog.Store
	client *slack.Client
	batch  *pipeline.BatchService
	lastTS time.Time
}

func NewService(cfg config.Config, db *storage.DB, store *catalog.Store, completer llm.Completer) *Service {
	return &Service{
		cfg:    cfg,
		db:     db,
		store:  store,
		client: slack.NewClient(cfg),
		batch:  pipeline.NewBatchService(cfg, db, store, completer),
	}
}

func (s *Service) Run(ctx context.Context) error {
	// First cycle picks up everything from the start of today.
	now := time.Now()
	s.lastTS = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for {
		if err := s.runCycle(ctx); err != nil {
			log.Printf("watch cycle error: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	until := time.Now()
	records, err := s.client.FetchThreads(ctx, s.lastTS, until)
	if err != nil {
		return err
	}
	s.lastTS = until
	if len(records) == 0 {
		return nil
	}

	batch, err := s.batch.ProcessThreads(ctx, records)
	if err != nil {
		return err
	}

	log.Printf("watch cycle threads=%d products=%d passed=%v",
		len(records), batch.Report.TotalProducts, batch.Report.Passed)

	if s.cfg.WatchAutoExport && batch.Report.TotalProducts > 0 {
		files, err := pipeline.ExportBrandWorkbooks(batch.Result, batch.Report, s.cfg.WarehouseCode, s.cfg.OutputDir)
		if err != nil {
			return err
		}
		log.Printf("watch export run=%s files=%d", strconv.FormatInt(batch.RunID, 10), len(files))
	}
	return nil
}
