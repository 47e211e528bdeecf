package store

import (
	"encoding/json"
	"log/slog"

	"github.com/phanxgames/arbor/tree"
)

// Storage keys. The node index and edge list live under fixed keys; each
// node record lives under keyNodePrefix + id.
const (
	keyNodeIndex  = "skilltree.nodes"
	keyEdges      = "skilltree.edges"
	keyNodePrefix = "skilltree.node."
)

// TreeStore persists a tree.Tree on a KV. Loading never fails: any entry
// that is missing or fails to parse is skipped silently (logged at debug
// level), so a damaged store degrades to a smaller tree, never an error.
type TreeStore struct {
	kv KV
}

// NewTreeStore wraps a KV.
func NewTreeStore(kv KV) *TreeStore {
	return &TreeStore{kv: kv}
}

// KV returns the underlying key/value store.
func (s *TreeStore) KV() KV {
	return s.kv
}

// Close closes the underlying KV.
func (s *TreeStore) Close() error {
	return s.kv.Close()
}

// Load reads the whole tree. A missing or malformed index yields an empty
// tree; an id listed in the index whose record is missing or malformed is
// skipped; an edge list that fails to parse yields zero edges.
func (s *TreeStore) Load() *tree.Tree {
	t := tree.New()

	var ids []string
	if raw, ok, err := s.kv.Get(keyNodeIndex); err == nil && ok {
		if err := json.Unmarshal(raw, &ids); err != nil {
			slog.Debug("node index unreadable, starting empty", "err", err)
			ids = nil
		}
	} else if err != nil {
		slog.Debug("node index read failed, starting empty", "err", err)
	}

	for _, id := range ids {
		raw, ok, err := s.kv.Get(keyNodePrefix + id)
		if err != nil || !ok {
			slog.Debug("node record missing, skipped", "node", id, "err", err)
			continue
		}
		var n tree.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			slog.Debug("node record unreadable, skipped", "node", id, "err", err)
			continue
		}
		n.ID = id // the key wins over whatever the record claims
		n.Difficulty = tree.ClampDifficulty(n.Difficulty)
		t.AddNode(&n)
	}

	if raw, ok, err := s.kv.Get(keyEdges); err == nil && ok {
		var edges []tree.Edge
		if err := json.Unmarshal(raw, &edges); err != nil {
			slog.Debug("edge list unreadable, starting empty", "err", err)
		} else {
			t.Edges = edges
		}
	} else if err != nil {
		slog.Debug("edge list read failed, starting empty", "err", err)
	}

	return t
}

// SaveNode writes one node record and refreshes the index.
func (s *TreeStore) SaveNode(t *tree.Tree, n *tree.Node) error {
	raw, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := s.kv.Set(keyNodePrefix+n.ID, raw); err != nil {
		return err
	}
	return s.saveIndex(t)
}

// DeleteNode removes the node record and refreshes the index and edges.
// Call after tree.RemoveNode so the cascade is reflected.
func (s *TreeStore) DeleteNode(t *tree.Tree, id string) error {
	if err := s.kv.Delete(keyNodePrefix + id); err != nil {
		return err
	}
	if err := s.saveIndex(t); err != nil {
		return err
	}
	return s.SaveEdges(t)
}

// SaveEdges writes the edge list.
func (s *TreeStore) SaveEdges(t *tree.Tree) error {
	edges := t.Edges
	if edges == nil {
		edges = []tree.Edge{}
	}
	raw, err := json.Marshal(edges)
	if err != nil {
		return err
	}
	return s.kv.Set(keyEdges, raw)
}

// SaveAll writes every node record, the index, and the edge list.
func (s *TreeStore) SaveAll(t *tree.Tree) error {
	for _, n := range t.Nodes {
		raw, err := json.Marshal(n)
		if err != nil {
			return err
		}
		if err := s.kv.Set(keyNodePrefix+n.ID, raw); err != nil {
			return err
		}
	}
	if err := s.saveIndex(t); err != nil {
		return err
	}
	return s.SaveEdges(t)
}

func (s *TreeStore) saveIndex(t *tree.Tree) error {
	ids := make([]string, len(t.Nodes))
	for i, n := range t.Nodes {
		ids[i] = n.ID
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return s.kv.Set(keyNodeIndex, raw)
}
