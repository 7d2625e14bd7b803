package extract

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/partition"
)

// CLIExtractor implements Extractor by shelling out to the ethereumetl
// command line tool. Each method maps to one subcommand.
type CLIExtractor struct {
	// Bin is the ethereumetl executable name or path.
	Bin string
}

// NewCLIExtractor creates an extractor backed by the given ethereumetl binary.
func NewCLIExtractor(bin string) *CLIExtractor {
	if bin == "" {
		bin = "ethereumetl"
	}
	return &CLIExtractor{Bin: bin}
}

func (e *CLIExtractor) run(ctx context.Context, op string, args ...string) error {
	cmd := exec.CommandContext(ctx, e.Bin, append([]string{op}, args...)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logrus.Debugf("running %s %v", e.Bin, cmd.Args[1:])
	if err := cmd.Run(); err != nil {
		if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return &ExtractionError{Op: op, Err: err}
	}
	return nil
}

func (e *CLIExtractor) GetBlockRangeForDate(ctx context.Context, providerURI string, date time.Time, output string) error {
	return e.run(ctx, "get_block_range_for_date",
		"--provider-uri", providerURI,
		"--date", date.Format(partition.DateLayout),
		"--output", output,
	)
}

func (e *CLIExtractor) ExportBlocksAndTransactions(ctx context.Context, opts RangeOptions, blocksOutput, transactionsOutput string) error {
	return e.run(ctx, "export_blocks_and_transactions",
		"--start-block", strconv.FormatInt(opts.StartBlock, 10),
		"--end-block", strconv.FormatInt(opts.EndBlock, 10),
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--provider-uri", opts.ProviderURI,
		"--blocks-output", blocksOutput,
		"--transactions-output", transactionsOutput,
	)
}

func (e *CLIExtractor) ExportReceiptsAndLogs(ctx context.Context, opts BatchOptions, transactionHashes, receiptsOutput, logsOutput string) error {
	return e.run(ctx, "export_receipts_and_logs",
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--provider-uri", opts.ProviderURI,
		"--transaction-hashes", transactionHashes,
		"--receipts-output", receiptsOutput,
		"--logs-output", logsOutput,
	)
}

func (e *CLIExtractor) ExportContracts(ctx context.Context, opts BatchOptions, contractAddresses, output string) error {
	return e.run(ctx, "export_contracts",
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--provider-uri", opts.ProviderURI,
		"--contract-addresses", contractAddresses,
		"--output", output,
	)
}

func (e *CLIExtractor) ExportTokens(ctx context.Context, opts BatchOptions, tokenAddresses, output string) error {
	return e.run(ctx, "export_tokens",
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--provider-uri", opts.ProviderURI,
		"--token-addresses", tokenAddresses,
		"--output", output,
	)
}

func (e *CLIExtractor) ExtractTokenTransfers(ctx context.Context, opts BatchOptions, logs, output string) error {
	return e.run(ctx, "extract_token_transfers",
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--logs", logs,
		"--output", output,
	)
}

func (e *CLIExtractor) ExportTraces(ctx context.Context, opts TraceOptions, output string) error {
	args := []string{
		"--start-block", strconv.FormatInt(opts.StartBlock, 10),
		"--end-block", strconv.FormatInt(opts.EndBlock, 10),
		"--batch-size", strconv.Itoa(opts.BatchSize),
		"--max-workers", strconv.Itoa(opts.MaxWorkers),
		"--provider-uri", opts.ProviderURI,
		"--output", output,
	}
	if opts.GenesisTraces {
		args = append(args, "--genesis-traces")
	}
	if opts.DaoforkTraces {
		args = append(args, "--daofork-traces")
	}
	return e.run(ctx, "export_traces", args...)
}

func (e *CLIExtractor) ExtractCSVColumn(ctx context.Context, input, output, column string) error {
	return e.run(ctx, "extract_csv_column",
		"--input", input,
		"--output", output,
		"--column", column,
	)
}

func (e *CLIExtractor) FilterItems(ctx context.Context, input, output, predicate string) error {
	return e.run(ctx, "filter_items",
		"--input", input,
		"--output", output,
		"--predicate", predicate,
	)
}

func (e *CLIExtractor) ExtractField(ctx context.Context, input, output, field string) error {
	return e.run(ctx, "extract_field",
		"--input", input,
		"--output", output,
		"--field", field,
	)
}
