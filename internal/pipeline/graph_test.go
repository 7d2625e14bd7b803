package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlode/ethexport/internal/config"
	"github.com/chainlode/ethexport/internal/partition"
)

func testSteps() []*Step {
	return CanonicalSteps(ExportOptions{
		ProviderURI:         "https://mainnet.example/",
		ProviderURIArchival: "https://archive.example/",
		BatchSize:           10,
		MaxWorkers:          5,
	})
}

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func TestBuildAllEnabled(t *testing.T) {
	g, err := Build(testSteps(), nil)
	require.NoError(t, err)

	assert.Len(t, g.Nodes(), 6)
	assert.Equal(t, 4, g.EdgeCount())

	receipts, ok := g.Node(config.StepExportReceiptsAndLogs)
	require.True(t, ok)
	assert.Equal(t, []string{config.StepExportBlocksAndTransactions}, names(receipts.Deps()))

	contracts, ok := g.Node(config.StepExportContracts)
	require.True(t, ok)
	assert.Equal(t, []string{config.StepExportReceiptsAndLogs}, names(contracts.Deps()))

	tokens, ok := g.Node(config.StepExportTokens)
	require.True(t, ok)
	assert.Equal(t, []string{config.StepExportContracts}, names(tokens.Deps()))

	transfers, ok := g.Node(config.StepExtractTokenTransfers)
	require.True(t, ok)
	assert.Equal(t, []string{config.StepExportReceiptsAndLogs}, names(transfers.Deps()))

	traces, ok := g.Node(config.StepExportTraces)
	require.True(t, ok)
	assert.Empty(t, traces.Deps(), "traces runs independently")
	assert.Empty(t, traces.Dependents())
}

func TestBuildTopologicalOrder(t *testing.T) {
	g, err := Build(testSteps(), nil)
	require.NoError(t, err)

	index := make(map[string]int)
	for i, n := range g.Nodes() {
		index[n.Name()] = i
	}

	for _, n := range g.Nodes() {
		for _, dep := range n.Deps() {
			assert.Less(t, index[dep.Name()], index[n.Name()],
				"producer %s must order before consumer %s", dep.Name(), n.Name())
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(testSteps(), nil)
	require.NoError(t, err)
	b, err := Build(testSteps(), nil)
	require.NoError(t, err)
	assert.Equal(t, names(a.Nodes()), names(b.Nodes()))
}

func TestBuildAllDisabled(t *testing.T) {
	toggles := make(map[string]bool)
	for _, name := range config.StepNames {
		toggles[name] = false
	}

	g, err := Build(testSteps(), toggles)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes())
	assert.Zero(t, g.EdgeCount())
}

func TestBuildUnknownToggleNamesAreIgnored(t *testing.T) {
	g, err := Build(testSteps(), map[string]bool{"export_uncles": false})
	require.NoError(t, err)
	assert.Len(t, g.Nodes(), 6, "unknown toggle names must not affect the graph")
}

func TestBuildDisabledProducerElidesEdge(t *testing.T) {
	g, err := Build(testSteps(), map[string]bool{config.StepExportContracts: false})
	require.NoError(t, err)

	assert.Len(t, g.Nodes(), 5)
	assert.Equal(t, 3, g.EdgeCount())

	_, ok := g.Node(config.StepExportContracts)
	assert.False(t, ok)

	// The consumer stays in the graph with no predecessor: it keeps its
	// input contract and fails fast at fetch time instead of being wired
	// to a missing producer.
	tokens, ok := g.Node(config.StepExportTokens)
	require.True(t, ok)
	assert.Empty(t, tokens.Deps())
	assert.Contains(t, names(g.Roots()), config.StepExportTokens)
}

func TestBuildDisabledConsumerElidesEdge(t *testing.T) {
	g, err := Build(testSteps(), map[string]bool{
		config.StepExportTokens:          false,
		config.StepExtractTokenTransfers: false,
	})
	require.NoError(t, err)

	assert.Len(t, g.Nodes(), 4)
	assert.Equal(t, 2, g.EdgeCount())

	receipts, ok := g.Node(config.StepExportReceiptsAndLogs)
	require.True(t, ok)
	assert.Equal(t, []string{config.StepExportContracts}, names(receipts.Dependents()))
}

func TestBuildRejectsDuplicateProducers(t *testing.T) {
	steps := testSteps()
	steps = append(steps, &Step{
		Name:    "export_blocks_again",
		Outputs: []Artifact{{Kind: partition.Blocks, File: "blocks.csv"}},
		Run:     func(ctx context.Context, env *Env) error { return nil },
	})

	_, err := Build(steps, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "produced by both")
}

func TestBuildRejectsDuplicateStepNames(t *testing.T) {
	steps := testSteps()
	steps = append(steps, &Step{
		Name: config.StepExportTraces,
		Run:  func(ctx context.Context, env *Env) error { return nil },
	})

	_, err := Build(steps, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate step name")
}

func TestBuildRejectsCycles(t *testing.T) {
	a := &Step{
		Name:    "a",
		Inputs:  []Artifact{{Kind: "beta", File: "b.csv"}},
		Outputs: []Artifact{{Kind: "alpha", File: "a.csv"}},
		Run:     func(ctx context.Context, env *Env) error { return nil },
	}
	b := &Step{
		Name:    "b",
		Inputs:  []Artifact{{Kind: "alpha", File: "a.csv"}},
		Outputs: []Artifact{{Kind: "beta", File: "b.csv"}},
		Run:     func(ctx context.Context, env *Env) error { return nil },
	}

	_, err := Build([]*Step{a, b}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
