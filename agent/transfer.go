package agent

import "fmt"

// Tree wraps a root Agent with parent-pointer and name-index bookkeeping so
// the Runner can resolve transfer_to_agent calls and walk up/down the tree
// without re-deriving it on every turn (spec §4.6/§4.7).
type Tree struct {
	root   Agent
	byName map[string]Agent
	parent map[string]Agent
}

// BuildTree indexes root and every descendant by name. It returns an error
// if two agents in the tree share a name, since transfer resolution is by
// name.
func BuildTree(root Agent) (*Tree, error) {
	t := &Tree{root: root, byName: map[string]Agent{}, parent: map[string]Agent{}}
	if err := t.index(root, nil); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) index(a Agent, parent Agent) error {
	if _, exists := t.byName[a.Name()]; exists {
		return fmt.Errorf("duplicate agent name %q in tree", a.Name())
	}
	t.byName[a.Name()] = a
	if parent != nil {
		t.parent[a.Name()] = parent
	}
	for _, child := range a.SubAgents() {
		if err := t.index(child, a); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the tree's root agent.
func (t *Tree) Root() Agent { return t.root }

// Find looks up an agent by name.
func (t *Tree) Find(name string) (Agent, bool) {
	a, ok := t.byName[name]
	return a, ok
}

// Parent returns the parent of the named agent, or (nil, false) at the
// root.
func (t *Tree) Parent(name string) (Agent, bool) {
	p, ok := t.parent[name]
	return p, ok
}

// Peers returns the siblings of the named agent (children of its parent,
// excluding itself). Returns nil at the root, which has no peers.
func (t *Tree) Peers(name string) []Agent {
	parent, ok := t.parent[name]
	if !ok {
		return nil
	}
	siblings := parent.SubAgents()
	out := make([]Agent, 0, len(siblings))
	for _, s := range siblings {
		if s.Name() != name {
			out = append(out, s)
		}
	}
	return out
}

// IsTransferable reports whether a transfer from the agent named "from" to
// the agent named "to" is permitted by the disallow flags declared along
// the path between them. Transfer targets are always reachable: to the
// immediate parent (blocked by DisallowTransferToParent on the current
// agent), to a peer (blocked by DisallowTransferToPeers on the current
// agent), or to any other named agent in the tree (always allowed). Only
// the one hop to the immediate parent is checked: DisallowTransferToParent
// on an ancestor in between does not block a transfer further up.
func (t *Tree) IsTransferable(from, to string) bool {
	fromAgent, ok := t.byName[from]
	if !ok {
		return false
	}
	if _, ok := t.byName[to]; !ok {
		return false
	}
	if from == to {
		return false
	}

	// Target is the immediate parent: blocked only by DisallowTransferToParent
	// on "from" itself.
	if parent, ok := t.parent[from]; ok && parent.Name() == to {
		if fromLlm, ok := fromAgent.(*LlmAgent); ok && fromLlm.DisallowTransferToParent {
			return false
		}
		return true
	}

	// Target is a peer (sibling): blocked only by DisallowTransferToPeers on
	// "from" itself.
	if parent, ok := t.parent[from]; ok {
		for _, sib := range parent.SubAgents() {
			if sib.Name() == to {
				if fromLlm, ok := fromAgent.(*LlmAgent); ok && fromLlm.DisallowTransferToPeers {
					return false
				}
				return true
			}
		}
	}

	// Otherwise: any other named agent in the tree (an ancestor further up,
	// a descendant, or an agent in another branch) is reachable. The
	// disallow flags of the agents in between are not consulted here, and
	// the Runner makes a single IsTransferable call per transfer.
	return true
}

// CycleGuard counts transfers into each agent within one invocation to
// detect transfer loops (spec §7's TransferLoop error kind): once an agent
// has been entered more than the limit, the transfer is reported as a
// loop. The counts are never reset, so model output or tool calls between
// transfers do not clear them.
type CycleGuard struct {
	visits map[string]int
	limit  int
}

// NewCycleGuard builds a guard allowing each agent to be the active agent
// at most limit times within one invocation before TransferLoop fires.
func NewCycleGuard(limit int) *CycleGuard {
	if limit <= 0 {
		limit = 8
	}
	return &CycleGuard{visits: map[string]int{}, limit: limit}
}

// Enter records a transfer into agentName and reports whether the visit
// count now exceeds the configured limit.
func (g *CycleGuard) Enter(agentName string) (exceeded bool) {
	g.visits[agentName]++
	return g.visits[agentName] > g.limit
}
