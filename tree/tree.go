// Package tree holds the skill tree data model: nodes with objectives,
// edges between them, and the mutation operations the editor and CLI share.
// Collections are flat slices scanned linearly; the trees this tool edits
// are small enough that indexes would be pure overhead.
package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// Difficulty scores are clamped to this range at every write path.
const (
	MinDifficulty = 0
	MaxDifficulty = 33
)

// EdgeKind selects how a link is drawn.
type EdgeKind string

const (
	EdgeStraight EdgeKind = "straight"
	EdgeCurved   EdgeKind = "curved"
)

// Objective is a checkable sub-item of a node's quest text.
type Objective struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// Node is a skill/quest marker.
type Node struct {
	ID         string      `json:"id"`
	X          float64     `json:"x"`
	Y          float64     `json:"y"`
	Title      string      `json:"title"`
	Unlocked   bool        `json:"unlocked"`
	Difficulty int         `json:"difficulty"`
	Objectives []Objective `json:"objectives,omitempty"`

	// Rule is an optional Lua expression that can auto-unlock the node.
	// Empty means the node only unlocks manually.
	Rule string `json:"rule,omitempty"`
}

// Edge is a decorative connector between two nodes. Endpoints are ids, not
// pointers; an edge may reference a node that no longer (or does not yet)
// exist, and such edges are simply skipped by ResolvedEdges.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// ResolvedEdge pairs an edge with its looked-up endpoints.
type ResolvedEdge struct {
	Edge     Edge
	From, To *Node
}

// Tree is the whole skill tree.
type Tree struct {
	Nodes []*Node
	Edges []Edge

	nextID int
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{nextID: 1}
}

// ClampDifficulty clamps v to [MinDifficulty, MaxDifficulty].
func ClampDifficulty(v int) int {
	if v < MinDifficulty {
		return MinDifficulty
	}
	if v > MaxDifficulty {
		return MaxDifficulty
	}
	return v
}

// ParseDifficulty converts free-form user input to a difficulty score.
// Malformed input yields a clamped value, never an error: garbage parses
// to 0, out-of-range numbers clamp.
func ParseDifficulty(s string) int {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		return ClampDifficulty(v)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return ClampDifficulty(int(f))
	}
	return MinDifficulty
}

// AddNode inserts n into the tree. An empty ID is assigned the next
// generated id ("n1", "n2", ...); a caller-provided id advances the
// generator past any numeric suffix so later generated ids never collide.
// Difficulty is clamped. Returns the inserted node.
func (t *Tree) AddNode(n *Node) *Node {
	if n.ID == "" {
		n.ID = fmt.Sprintf("n%d", t.nextID)
		t.nextID++
	} else {
		t.reserveID(n.ID)
	}
	n.Difficulty = ClampDifficulty(n.Difficulty)
	t.Nodes = append(t.Nodes, n)
	return n
}

// reserveID bumps the id generator past ids of the form n<number>.
func (t *Tree) reserveID(id string) {
	rest, ok := strings.CutPrefix(id, "n")
	if !ok {
		return
	}
	v, err := strconv.Atoi(rest)
	if err != nil {
		return
	}
	if v >= t.nextID {
		t.nextID = v + 1
	}
}

// FindNode returns the node with the given id, or nil. Linear scan.
func (t *Tree) FindNode(id string) *Node {
	for _, n := range t.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// RemoveNode deletes the node and every edge touching it. Returns whether
// a node was removed.
func (t *Tree) RemoveNode(id string) bool {
	idx := -1
	for i, n := range t.Nodes {
		if n.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	t.Nodes = append(t.Nodes[:idx], t.Nodes[idx+1:]...)

	kept := t.Edges[:0]
	for _, e := range t.Edges {
		if e.From != id && e.To != id {
			kept = append(kept, e)
		}
	}
	t.Edges = kept
	return true
}

// MoveNode sets the node's position. Unknown ids are ignored.
func (t *Tree) MoveNode(id string, x, y float64) {
	if n := t.FindNode(id); n != nil {
		n.X, n.Y = x, y
	}
}

// SetTitle sets the node's title.
func (t *Tree) SetTitle(id, title string) {
	if n := t.FindNode(id); n != nil {
		n.Title = title
	}
}

// SetDifficulty sets the node's difficulty, clamped.
func (t *Tree) SetDifficulty(id string, v int) {
	if n := t.FindNode(id); n != nil {
		n.Difficulty = ClampDifficulty(v)
	}
}

// SetUnlocked sets the node's unlock flag.
func (t *Tree) SetUnlocked(id string, unlocked bool) {
	if n := t.FindNode(id); n != nil {
		n.Unlocked = unlocked
	}
}

// AddObjective appends an objective with the given text.
func (t *Tree) AddObjective(id, text string) {
	if n := t.FindNode(id); n != nil {
		n.Objectives = append(n.Objectives, Objective{Text: text})
	}
}

// RemoveObjective deletes the objective at index. Out-of-range indexes are
// ignored.
func (t *Tree) RemoveObjective(id string, index int) {
	n := t.FindNode(id)
	if n == nil || index < 0 || index >= len(n.Objectives) {
		return
	}
	n.Objectives = append(n.Objectives[:index], n.Objectives[index+1:]...)
}

// ToggleObjective flips the done flag of the objective at index and returns
// the new value. Out-of-range indexes return false.
func (t *Tree) ToggleObjective(id string, index int) bool {
	n := t.FindNode(id)
	if n == nil || index < 0 || index >= len(n.Objectives) {
		return false
	}
	n.Objectives[index].Done = !n.Objectives[index].Done
	return n.Objectives[index].Done
}

// SetObjectiveText replaces the text of the objective at index.
func (t *Tree) SetObjectiveText(id string, index int, text string) {
	n := t.FindNode(id)
	if n == nil || index < 0 || index >= len(n.Objectives) {
		return
	}
	n.Objectives[index].Text = text
}

// Progress returns the done and total objective counts for a node.
// Unknown ids count as 0/0.
func (t *Tree) Progress(id string) (done, total int) {
	n := t.FindNode(id)
	if n == nil {
		return 0, 0
	}
	for _, o := range n.Objectives {
		if o.Done {
			done++
		}
	}
	return done, len(n.Objectives)
}

// AddEdge adds an edge, tolerating endpoints that do not exist yet. Adding
// an edge whose endpoint pair is already linked (in either direction)
// removes the existing edge instead; this toggle is also how edges are
// deleted interactively. Returns true when an edge was added, false when
// one was removed.
func (t *Tree) AddEdge(from, to string, kind EdgeKind) bool {
	for i, e := range t.Edges {
		if (e.From == from && e.To == to) || (e.From == to && e.To == from) {
			t.Edges = append(t.Edges[:i], t.Edges[i+1:]...)
			return false
		}
	}
	if kind != EdgeCurved {
		kind = EdgeStraight
	}
	t.Edges = append(t.Edges, Edge{From: from, To: to, Kind: kind})
	return true
}

// RemoveEdge deletes the edge between the pair, in either direction.
func (t *Tree) RemoveEdge(from, to string) bool {
	for i, e := range t.Edges {
		if (e.From == from && e.To == to) || (e.From == to && e.To == from) {
			t.Edges = append(t.Edges[:i], t.Edges[i+1:]...)
			return true
		}
	}
	return false
}

// ResolvedEdges returns only the edges whose both endpoints exist right
// now. Stale references are silently skipped; they stay in Edges and
// resolve again if the missing node reappears.
func (t *Tree) ResolvedEdges() []ResolvedEdge {
	out := make([]ResolvedEdge, 0, len(t.Edges))
	for _, e := range t.Edges {
		from := t.FindNode(e.From)
		to := t.FindNode(e.To)
		if from == nil || to == nil {
			continue
		}
		out = append(out, ResolvedEdge{Edge: e, From: from, To: to})
	}
	return out
}
