package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlode/ethexport/internal/config"
	"github.com/chainlode/ethexport/internal/extract"
	"github.com/chainlode/ethexport/internal/pipeline"
	"github.com/chainlode/ethexport/internal/staging"
	"github.com/chainlode/ethexport/internal/storage"
)

// stubExtractor writes a placeholder file for every output so the whole
// pipeline can round-trip artifacts through a real local store.
type stubExtractor struct {
	mu    sync.Mutex
	calls []string
}

func (s *stubExtractor) call(op string, outputs ...string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()
	for _, out := range outputs {
		if err := os.WriteFile(out, []byte(op+"\n"), 0644); err != nil {
			return &extract.ExtractionError{Op: op, Err: err}
		}
	}
	return nil
}

func (s *stubExtractor) GetBlockRangeForDate(ctx context.Context, providerURI string, date time.Time, output string) error {
	s.mu.Lock()
	s.calls = append(s.calls, "get_block_range_for_date")
	s.mu.Unlock()
	return os.WriteFile(output, []byte("11814407,11820923"), 0644)
}

func (s *stubExtractor) ExportBlocksAndTransactions(ctx context.Context, opts extract.RangeOptions, blocksOutput, transactionsOutput string) error {
	return s.call("export_blocks_and_transactions", blocksOutput, transactionsOutput)
}

func (s *stubExtractor) ExportReceiptsAndLogs(ctx context.Context, opts extract.BatchOptions, transactionHashes, receiptsOutput, logsOutput string) error {
	// The input list must have been staged from the transactions partition
	// before this runs; fail loudly if the contract is broken.
	if _, err := os.Stat(transactionHashes); err != nil {
		return &extract.ExtractionError{Op: "export_receipts_and_logs", Err: err}
	}
	return s.call("export_receipts_and_logs", receiptsOutput, logsOutput)
}

func (s *stubExtractor) ExportContracts(ctx context.Context, opts extract.BatchOptions, contractAddresses, output string) error {
	return s.call("export_contracts", output)
}

func (s *stubExtractor) ExportTokens(ctx context.Context, opts extract.BatchOptions, tokenAddresses, output string) error {
	return s.call("export_tokens", output)
}

func (s *stubExtractor) ExtractTokenTransfers(ctx context.Context, opts extract.BatchOptions, logs, output string) error {
	return s.call("extract_token_transfers", output)
}

func (s *stubExtractor) ExportTraces(ctx context.Context, opts extract.TraceOptions, output string) error {
	return s.call("export_traces", output)
}

func (s *stubExtractor) ExtractCSVColumn(ctx context.Context, input, output, column string) error {
	if _, err := os.Stat(input); err != nil {
		return &extract.ExtractionError{Op: "extract_csv_column", Err: err}
	}
	return s.call("extract_csv_column", output)
}

func (s *stubExtractor) FilterItems(ctx context.Context, input, output, predicate string) error {
	return s.call("filter_items", output)
}

func (s *stubExtractor) ExtractField(ctx context.Context, input, output, field string) error {
	return s.call("extract_field", output)
}

func TestFullRunPublishesEveryPartition(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalFSStore(base)
	require.NoError(t, err)
	defer store.Close()

	executor := pipeline.NewExecutor(staging.NewTransfer(store, "etl-bucket"), &stubExtractor{})
	s := New(executor, Policy{Workers: 3, Timeout: time.Minute, RetryDelay: time.Millisecond}, nil)

	g := buildGraph(t, nil)
	require.NoError(t, s.RunOnce(context.Background(), g, testDate))

	expected := []string{
		"export/blocks_meta/block_date=2021-03-01/blocks_meta.txt",
		"export/blocks/block_date=2021-03-01/blocks.csv",
		"export/transactions/block_date=2021-03-01/transactions.csv",
		"export/receipts/block_date=2021-03-01/receipts.csv",
		"export/logs/block_date=2021-03-01/logs.json",
		"export/contracts/block_date=2021-03-01/contracts.json",
		"export/tokens/block_date=2021-03-01/tokens.csv",
		"export/token_transfers/block_date=2021-03-01/token_transfers.csv",
		"export/traces/block_date=2021-03-01/traces.csv",
	}
	for _, object := range expected {
		_, err := os.Stat(filepath.Join(base, "etl-bucket", filepath.FromSlash(object)))
		assert.NoError(t, err, "missing %s", object)
	}
}

func TestFullRunDisabledProducerFailsConsumerFast(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalFSStore(base)
	require.NoError(t, err)
	defer store.Close()

	executor := pipeline.NewExecutor(staging.NewTransfer(store, "etl-bucket"), &stubExtractor{})
	s := New(executor, Policy{Workers: 2, Timeout: time.Minute, Retries: 3, RetryDelay: time.Millisecond}, nil)

	g := buildGraph(t, map[string]bool{config.StepExportContracts: false})
	err = s.RunOnce(context.Background(), g, testDate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.StepExportTokens)

	// Everything else still completes.
	for _, object := range []string{
		"export/blocks/block_date=2021-03-01/blocks.csv",
		"export/receipts/block_date=2021-03-01/receipts.csv",
		"export/token_transfers/block_date=2021-03-01/token_transfers.csv",
		"export/traces/block_date=2021-03-01/traces.csv",
	} {
		_, statErr := os.Stat(filepath.Join(base, "etl-bucket", filepath.FromSlash(object)))
		assert.NoError(t, statErr, "missing %s", object)
	}

	// And the tokens partition stays empty: no partial output appeared.
	_, statErr := os.Stat(filepath.Join(base, "etl-bucket", "export", "tokens"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFullRunBackfillOverExistingPartitions(t *testing.T) {
	base := t.TempDir()
	store, err := storage.NewLocalFSStore(base)
	require.NoError(t, err)
	defer store.Close()

	executor := pipeline.NewExecutor(staging.NewTransfer(store, "etl-bucket"), &stubExtractor{})
	s := New(executor, Policy{Workers: 2, Timeout: time.Minute, RetryDelay: time.Millisecond}, nil)

	g := buildGraph(t, nil)
	require.NoError(t, s.RunOnce(context.Background(), g, testDate))
	require.NoError(t, s.RunOnce(context.Background(), g, testDate), "backfill over existing partitions")

	dir := filepath.Join(base, "etl-bucket", "export", "transactions", "block_date=2021-03-01")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "re-run overwrites rather than duplicates")
}
