package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/chainlode/ethexport/internal/extract"
)

// fakeExtractor records the operations invoked on it and writes a small
// placeholder file for every declared output, so steps produce real files
// that can round-trip through a real store. Setting failOn makes the named
// operation fail without writing anything.
type fakeExtractor struct {
	mu     sync.Mutex
	calls  []string
	failOn string
}

func (f *fakeExtractor) invoke(op string, outputs ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()

	if op == f.failOn {
		return &extract.ExtractionError{Op: op, Err: errors.New("injected failure")}
	}
	for _, out := range outputs {
		if err := os.WriteFile(out, []byte(op+"\n"), 0644); err != nil {
			return &extract.ExtractionError{Op: op, Err: err}
		}
	}
	return nil
}

func (f *fakeExtractor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeExtractor) GetBlockRangeForDate(ctx context.Context, providerURI string, date time.Time, output string) error {
	f.mu.Lock()
	f.calls = append(f.calls, "get_block_range_for_date")
	f.mu.Unlock()

	if f.failOn == "get_block_range_for_date" {
		return &extract.ExtractionError{Op: "get_block_range_for_date", Err: errors.New("injected failure")}
	}
	return os.WriteFile(output, []byte("11814407,11820923"), 0644)
}

func (f *fakeExtractor) ExportBlocksAndTransactions(ctx context.Context, opts extract.RangeOptions, blocksOutput, transactionsOutput string) error {
	return f.invoke("export_blocks_and_transactions", blocksOutput, transactionsOutput)
}

func (f *fakeExtractor) ExportReceiptsAndLogs(ctx context.Context, opts extract.BatchOptions, transactionHashes, receiptsOutput, logsOutput string) error {
	return f.invoke("export_receipts_and_logs", receiptsOutput, logsOutput)
}

func (f *fakeExtractor) ExportContracts(ctx context.Context, opts extract.BatchOptions, contractAddresses, output string) error {
	return f.invoke("export_contracts", output)
}

func (f *fakeExtractor) ExportTokens(ctx context.Context, opts extract.BatchOptions, tokenAddresses, output string) error {
	return f.invoke("export_tokens", output)
}

func (f *fakeExtractor) ExtractTokenTransfers(ctx context.Context, opts extract.BatchOptions, logs, output string) error {
	return f.invoke("extract_token_transfers", output)
}

func (f *fakeExtractor) ExportTraces(ctx context.Context, opts extract.TraceOptions, output string) error {
	return f.invoke("export_traces", output)
}

func (f *fakeExtractor) ExtractCSVColumn(ctx context.Context, input, output, column string) error {
	return f.invoke("extract_csv_column", output)
}

func (f *fakeExtractor) FilterItems(ctx context.Context, input, output, predicate string) error {
	return f.invoke("filter_items", output)
}

func (f *fakeExtractor) ExtractField(ctx context.Context, input, output, field string) error {
	return f.invoke("extract_field", output)
}
