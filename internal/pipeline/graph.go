package pipeline

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/chainlode/ethexport/internal/partition"
)

// Node is one vertex of a built task graph: a step plus its resolved
// producer and consumer edges. Nodes are immutable after Build.
type Node struct {
	Step       *Step
	deps       []*Node
	dependents []*Node
}

// Name returns the underlying step name.
func (n *Node) Name() string { return n.Step.Name }

// Deps returns the producers this node waits for.
func (n *Node) Deps() []*Node { return n.deps }

// Dependents returns the consumers waiting for this node.
func (n *Node) Dependents() []*Node { return n.dependents }

// Graph is the set of enabled steps wired producer to consumer. It is built
// once per configuration and treated as read-only by everything that runs it.
type Graph struct {
	nodes  []*Node // topological order
	byName map[string]*Node
}

// Nodes returns every node in a valid topological order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Node looks a node up by step name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, ok := g.byName[name]
	return n, ok
}

// Roots returns the nodes with no producers.
func (g *Graph) Roots() []*Node {
	var roots []*Node
	for _, n := range g.nodes {
		if len(n.deps) == 0 {
			roots = append(roots, n)
		}
	}
	return roots
}

// EdgeCount returns the number of producer-consumer edges.
func (g *Graph) EdgeCount() int {
	total := 0
	for _, n := range g.nodes {
		total += len(n.deps)
	}
	return total
}

// Build constructs the task graph for one toggle configuration. A step is
// instantiated when its toggle is true or absent from the map. Edges are
// derived by matching each enabled step's input kinds against the output
// kinds of the other enabled steps; an edge whose producer is disabled is
// elided entirely, leaving the consumer with no predecessor. The consumer
// keeps its input contract and will fail fast at fetch time unless the
// artifact already exists from an earlier run, which is what keeps manual
// backfills over pre-existing partitions possible.
func Build(steps []*Step, toggles map[string]bool) (*Graph, error) {
	producers := make(map[partition.Kind]*Node)
	producedBy := make(map[partition.Kind]string)
	seen := mapset.NewSet[string]()

	// Validate the full step list before filtering so a kind with two
	// producers is rejected regardless of which toggles are set.
	for _, step := range steps {
		if !seen.Add(step.Name) {
			return nil, fmt.Errorf("duplicate step name %q", step.Name)
		}
		for _, out := range step.Outputs {
			if prev, ok := producedBy[out.Kind]; ok {
				return nil, fmt.Errorf("artifact kind %q produced by both %q and %q", out.Kind, prev, step.Name)
			}
			producedBy[out.Kind] = step.Name
		}
	}

	g := &Graph{byName: make(map[string]*Node)}
	var enabled []*Node
	for _, step := range steps {
		if on, ok := toggles[step.Name]; ok && !on {
			logrus.Debugf("step %s disabled, omitting from graph", step.Name)
			continue
		}
		node := &Node{Step: step}
		enabled = append(enabled, node)
		g.byName[step.Name] = node
	}

	for _, node := range enabled {
		for _, out := range node.Step.Outputs {
			producers[out.Kind] = node
		}
	}

	for _, node := range enabled {
		for _, in := range node.Step.Inputs {
			producer, ok := producers[in.Kind]
			if !ok {
				// The producing step is disabled (or the kind is external):
				// no edge, no predecessor. The gap is visible here and
				// enforced at run time by fetch's not-found failure.
				logrus.Warnf("step %s consumes %q but its producer %q is not in the graph; it will fail at fetch unless the partition already exists",
					node.Name(), in.Kind, producedBy[in.Kind])
				continue
			}
			node.deps = append(node.deps, producer)
			producer.dependents = append(producer.dependents, node)
		}
	}

	ordered, err := topoSort(enabled)
	if err != nil {
		return nil, err
	}
	g.nodes = ordered
	return g, nil
}

// topoSort orders nodes producers-first via Kahn's algorithm, preserving the
// input order among ready nodes so construction is deterministic. A cycle is
// a programming error in the step declarations and rejected outright.
func topoSort(nodes []*Node) ([]*Node, error) {
	inDegree := make(map[*Node]int, len(nodes))
	for _, n := range nodes {
		inDegree[n] = len(n.deps)
	}

	var ready []*Node
	for _, n := range nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	var ordered []*Node
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		ordered = append(ordered, n)
		for _, dep := range n.dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(nodes) {
		return nil, fmt.Errorf("dependency cycle among pipeline steps")
	}
	return ordered, nil
}
