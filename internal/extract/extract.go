package extract

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ExtractionError reports a failed unit of work. It is fatal for the step
// invocation that issued it; the step publishes nothing.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// RangeOptions parameterizes block-range exports.
type RangeOptions struct {
	StartBlock  int64
	EndBlock    int64
	BatchSize   int
	MaxWorkers  int
	ProviderURI string
}

// BatchOptions parameterizes batched exports driven by an input list file.
type BatchOptions struct {
	BatchSize   int
	MaxWorkers  int
	ProviderURI string
}

// TraceOptions parameterizes the traces export, including the two
// historical edge cases (genesis allocations and the DAO fork refunds).
type TraceOptions struct {
	RangeOptions
	GenesisTraces bool
	DaoforkTraces bool
}

// Extractor is the unit-of-work collaborator. Every method is a blocking,
// in-process function call that reads and writes only the local paths it is
// given; all failures surface as *ExtractionError. The caller never learns
// whether an implementation does the work in-process or shells out.
type Extractor interface {
	// GetBlockRangeForDate writes "start,end" for the date to output.
	GetBlockRangeForDate(ctx context.Context, providerURI string, date time.Time, output string) error

	ExportBlocksAndTransactions(ctx context.Context, opts RangeOptions, blocksOutput, transactionsOutput string) error
	ExportReceiptsAndLogs(ctx context.Context, opts BatchOptions, transactionHashes, receiptsOutput, logsOutput string) error
	ExportContracts(ctx context.Context, opts BatchOptions, contractAddresses, output string) error
	ExportTokens(ctx context.Context, opts BatchOptions, tokenAddresses, output string) error
	ExtractTokenTransfers(ctx context.Context, opts BatchOptions, logs, output string) error
	ExportTraces(ctx context.Context, opts TraceOptions, output string) error

	// ExtractCSVColumn projects one column of a CSV file, one value per line.
	ExtractCSVColumn(ctx context.Context, input, output, column string) error
	// FilterItems keeps the newline-delimited JSON items matching predicate,
	// a python-style expression over item fields as understood by the
	// extraction tool (e.g. "item['is_erc20'] or item['is_erc721']").
	FilterItems(ctx context.Context, input, output, predicate string) error
	// ExtractField projects one field of newline-delimited JSON items.
	ExtractField(ctx context.Context, input, output, field string) error
}

// ReadBlockRange parses a blocks_meta.txt file holding "start,end".
func ReadBlockRange(path string) (int64, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read block range file %s: %w", path, err)
	}

	parts := strings.Split(strings.TrimSpace(string(data)), ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed block range %q in %s", strings.TrimSpace(string(data)), path)
	}

	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed start block in %s: %w", path, err)
	}
	end, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed end block in %s: %w", path, err)
	}
	return start, end, nil
}
