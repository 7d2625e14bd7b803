package pipeline

import (
	"context"

	"github.com/chainlode/ethexport/internal/config"
	"github.com/chainlode/ethexport/internal/extract"
	"github.com/chainlode/ethexport/internal/partition"
)

// ExportOptions carries the extraction settings shared by the canonical
// steps.
type ExportOptions struct {
	ProviderURI         string
	ProviderURIArchival string
	BatchSize           int
	MaxWorkers          int
	GenesisTraces       bool
	DaoforkTraces       bool
}

// tokenPredicate selects ERC-20 and ERC-721 contracts from the contracts
// export, in the predicate syntax of the extraction tool.
const tokenPredicate = "item['is_erc20'] or item['is_erc721']"

// CanonicalSteps returns the six export steps in canonical order. Producer
// and consumer relationships are implied entirely by the artifact kinds the
// steps declare; the graph builder derives the edges from them.
func CanonicalSteps(opts ExportOptions) []*Step {
	rangeOpts := extract.RangeOptions{
		BatchSize:   opts.BatchSize,
		MaxWorkers:  opts.MaxWorkers,
		ProviderURI: opts.ProviderURI,
	}
	batchOpts := extract.BatchOptions{
		BatchSize:   opts.BatchSize,
		MaxWorkers:  opts.MaxWorkers,
		ProviderURI: opts.ProviderURI,
	}

	blocksAndTransactions := &Step{
		Name: config.StepExportBlocksAndTransactions,
		Outputs: []Artifact{
			{Kind: partition.BlocksMeta, File: "blocks_meta.txt"},
			{Kind: partition.Blocks, File: "blocks.csv"},
			{Kind: partition.Transactions, File: "transactions.csv"},
		},
		Run: func(ctx context.Context, env *Env) error {
			meta := env.Workspace.Path("blocks_meta.txt")
			if err := env.Extract.GetBlockRangeForDate(ctx, opts.ProviderURI, env.Date, meta); err != nil {
				return err
			}
			start, end, err := extract.ReadBlockRange(meta)
			if err != nil {
				return err
			}

			ro := rangeOpts
			ro.StartBlock, ro.EndBlock = start, end
			return env.Extract.ExportBlocksAndTransactions(ctx, ro,
				env.Workspace.Path("blocks.csv"),
				env.Workspace.Path("transactions.csv"))
		},
	}

	receiptsAndLogs := &Step{
		Name: config.StepExportReceiptsAndLogs,
		Inputs: []Artifact{
			{Kind: partition.Transactions, File: "transactions.csv"},
		},
		Outputs: []Artifact{
			{Kind: partition.Receipts, File: "receipts.csv"},
			{Kind: partition.Logs, File: "logs.json"},
		},
		Run: func(ctx context.Context, env *Env) error {
			hashes := env.Workspace.Path("transaction_hashes.txt")
			if err := env.Extract.ExtractCSVColumn(ctx,
				env.Workspace.Path("transactions.csv"), hashes, "hash"); err != nil {
				return err
			}
			return env.Extract.ExportReceiptsAndLogs(ctx, batchOpts, hashes,
				env.Workspace.Path("receipts.csv"),
				env.Workspace.Path("logs.json"))
		},
	}

	contracts := &Step{
		Name: config.StepExportContracts,
		Inputs: []Artifact{
			{Kind: partition.Receipts, File: "receipts.csv"},
		},
		Outputs: []Artifact{
			{Kind: partition.Contracts, File: "contracts.json"},
		},
		Run: func(ctx context.Context, env *Env) error {
			addresses := env.Workspace.Path("contract_addresses.txt")
			if err := env.Extract.ExtractCSVColumn(ctx,
				env.Workspace.Path("receipts.csv"), addresses, "contract_address"); err != nil {
				return err
			}
			return env.Extract.ExportContracts(ctx, batchOpts, addresses,
				env.Workspace.Path("contracts.json"))
		},
	}

	tokens := &Step{
		Name: config.StepExportTokens,
		Inputs: []Artifact{
			{Kind: partition.Contracts, File: "contracts.json"},
		},
		Outputs: []Artifact{
			{Kind: partition.Tokens, File: "tokens.csv"},
		},
		Run: func(ctx context.Context, env *Env) error {
			tokenContracts := env.Workspace.Path("token_contracts.json")
			if err := env.Extract.FilterItems(ctx,
				env.Workspace.Path("contracts.json"), tokenContracts, tokenPredicate); err != nil {
				return err
			}

			addresses := env.Workspace.Path("token_addresses.txt")
			if err := env.Extract.ExtractField(ctx, tokenContracts, addresses, "address"); err != nil {
				return err
			}
			return env.Extract.ExportTokens(ctx, batchOpts, addresses,
				env.Workspace.Path("tokens.csv"))
		},
	}

	tokenTransfers := &Step{
		Name: config.StepExtractTokenTransfers,
		Inputs: []Artifact{
			{Kind: partition.Logs, File: "logs.json"},
		},
		Outputs: []Artifact{
			{Kind: partition.TokenTransfers, File: "token_transfers.csv"},
		},
		Run: func(ctx context.Context, env *Env) error {
			return env.Extract.ExtractTokenTransfers(ctx, batchOpts,
				env.Workspace.Path("logs.json"),
				env.Workspace.Path("token_transfers.csv"))
		},
	}

	traces := &Step{
		Name: config.StepExportTraces,
		Outputs: []Artifact{
			{Kind: partition.Traces, File: "traces.csv"},
		},
		Run: func(ctx context.Context, env *Env) error {
			// Traces need an archive node; the block range is resolved
			// against it and kept local to this workspace.
			meta := env.Workspace.Path("blocks_meta.txt")
			if err := env.Extract.GetBlockRangeForDate(ctx, opts.ProviderURIArchival, env.Date, meta); err != nil {
				return err
			}
			start, end, err := extract.ReadBlockRange(meta)
			if err != nil {
				return err
			}

			to := extract.TraceOptions{
				RangeOptions:  rangeOpts,
				GenesisTraces: opts.GenesisTraces,
				DaoforkTraces: opts.DaoforkTraces,
			}
			to.StartBlock, to.EndBlock = start, end
			to.ProviderURI = opts.ProviderURIArchival
			return env.Extract.ExportTraces(ctx, to, env.Workspace.Path("traces.csv"))
		},
	}

	return []*Step{
		blocksAndTransactions,
		receiptsAndLogs,
		contracts,
		tokens,
		tokenTransfers,
		traces,
	}
}
