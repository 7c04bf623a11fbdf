package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"outbound/internal"
	"outbound/internal/catalog"
	"outbound/internal/config"
	"outbound/internal/llm"
	"outbound/internal/storage"
)

// BatchService runs one synchronous pass over a batch of message
// threads: thread processing, spreadsheet parsing, aggregation,
// validation and the audit trail. One instance per batch; nothing here
// is shared across concurrent batches.
type BatchService struct {
	cfg     config.Config
	db      *storage.DB
	store   *catalog.Store
	threads *ThreadProcessor
	matcher *Matcher
}

// NewBatchService wires the pipeline. db may be nil when no audit trail
// is wanted (tests, one-shot runs).
func NewBatchService(cfg config.Config, db *storage.DB, store *catalog.Store, completer llm.Completer) *BatchService {
	matcher := NewMatcher(store, completer, cfg.OwnerBrands)
	extractor := NewExtractor(completer)
	return &BatchService{
		cfg:     cfg,
		db:      db,
		store:   store,
		matcher: matcher,
		threads: NewThreadProcessor(extractor, matcher, completer, cfg.ContextMode),
	}
}

type BatchResult struct {
	Result internal.AggregationResult
	Report internal.ValidationReport
	RunID  int64
}

// ProcessThreads walks every thread record, collects line items from
// chat text and spreadsheet attachments, and aggregates the batch. A
// single thread failing contributes zero items; only the audit trail can
// return an error.
func (s *BatchService) ProcessThreads(ctx context.Context, records []internal.ThreadRecord) (BatchResult, error) {
	start := time.Now()

	var items []internal.LineItem
	var summaries []internal.ThreadSummary

	for i, rec := range records {
		threadItems, memo := s.threads.Process(ctx, rec)

		fileItems := s.processFiles(ctx, rec, memo)
		threadItems = append(threadItems, fileItems...)

		items = append(items, threadItems...)
		if len(threadItems) > 0 || len(rec.Files) > 0 {
			summaries = append(summaries, internal.ThreadSummary{
				ThreadIndex: i,
				Memo:        memo,
				ItemCount:   len(threadItems),
			})
		}
	}

	result := Aggregate(items, summaries)
	report := Validate(result)

	batch := BatchResult{Result: result, Report: report}
	if s.db != nil {
		runID, err := s.persistRun(items, result, report, time.Since(start))
		if err != nil {
			return batch, fmt.Errorf("persist run: %w", err)
		}
		batch.RunID = runID
	}

	return batch, nil
}

// processFiles matches every parsed spreadsheet row through the regular
// matcher. The thread's brand hint scopes the search.
func (s *BatchService) processFiles(ctx context.Context, rec internal.ThreadRecord, memo string) []internal.LineItem {
	var out []internal.LineItem
	hint := s.matcher.BrandHint(threadText(rec), rec.UserName)

	for _, file := range rec.Files {
		rows, err := ParseWorkbook(file.Filepath)
		if err != nil {
			log.Printf("workbook skipped file=%s: %v", file.Name, err)
			continue
		}
		for _, row := range rows {
			match := s.matcher.Match(ctx, row.Name, hint)
			if match == nil {
				continue
			}
			out = append(out, internal.LineItem{
				RawProductName: row.Name,
				Quantity:       row.Quantity,
				Brand:          match.Brand,
				ProductCode:    match.ProductCode,
				CanonicalName:  match.CanonicalName,
				Confidence:     match.Confidence,
				Source:         internal.SourceSpreadsheetRow,
				SourceRef:      fmt.Sprintf("%s#%d", row.File, row.Row),
				Memo:           memo,
			})
		}
	}
	return out
}

func (s *BatchService) persistRun(items []internal.LineItem, result internal.AggregationResult, report internal.ValidationReport, elapsed time.Duration) (int64, error) {
	runID, err := s.db.InsertRun(traceID(), len(result.ThreadSummaries), len(items), report, map[string]float64{
		"totalMs": float64(elapsed.Milliseconds()),
	})
	if err != nil {
		return 0, err
	}
	if err := s.db.InsertLineItems(runID, items); err != nil {
		return 0, err
	}
	if err := s.db.InsertAggregates(runID, result.Products); err != nil {
		return 0, err
	}
	return runID, nil
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
