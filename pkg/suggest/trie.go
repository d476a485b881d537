package suggest

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"resultdb/pkg/config"
	"resultdb/pkg/logger"
	"resultdb/pkg/models"
	"resultdb/pkg/store"
)

// Trie indexes case-folded execution names by prefix. Every node between
// minLen and maxLen deep keeps a bounded candidate list so a lookup is one
// walk plus a copy. A single RWMutex guards the structure; writes happen
// only on execution creation and are rare next to lookups.
type Trie struct {
	mu            sync.RWMutex
	root          *node
	minLen        int
	maxLen        int
	maxCandidates int
}

type node struct {
	children map[rune]*node
	items    []models.SuggestedItem
}

func newNode() *node {
	return &node{children: map[rune]*node{}}
}

// New returns an empty trie with the given depth window and per-node
// candidate cap.
func New(minLen, maxLen, maxCandidates int) *Trie {
	if minLen < 1 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	if maxCandidates < 1 {
		maxCandidates = 1
	}
	return &Trie{
		root:          newNode(),
		minLen:        minLen,
		maxLen:        maxLen,
		maxCandidates: maxCandidates,
	}
}

// Limit returns the per-node candidate cap, which is also the most items
// Search can return.
func (t *Trie) Limit() int { return t.maxCandidates }

// Insert indexes item under every folded prefix of name with length in
// [minLen, min(len, maxLen)]. Names shorter than minLen are ignored. Full
// nodes keep their existing candidates.
func (t *Trie) Insert(name string, item models.SuggestedItem) {
	folded := []rune(strings.ToLower(name))
	if len(folded) < t.minLen {
		return
	}
	limit := len(folded)
	if limit > t.maxLen {
		limit = t.maxLen
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.root
	for depth := 1; depth <= limit; depth++ {
		r := folded[depth-1]
		child := n.children[r]
		if child == nil {
			child = newNode()
			n.children[r] = child
		}
		n = child
		if depth >= t.minLen {
			n.add(item, t.maxCandidates)
		}
	}
}

func (n *node) add(item models.SuggestedItem, cap int) {
	if len(n.items) >= cap {
		return
	}
	for _, it := range n.items {
		if it.ID == item.ID && it.Name == item.Name {
			return
		}
	}
	n.items = append(n.items, item)
}

// Search walks the folded prefix and returns a copy of the terminal node's
// candidates. Prefixes shorter than minLen, or paths the index never
// created, yield an empty slice.
func (t *Trie) Search(prefix string) []models.SuggestedItem {
	folded := []rune(strings.ToLower(prefix))
	if len(folded) < t.minLen {
		return []models.SuggestedItem{}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	n := t.root
	for _, r := range folded {
		n = n.children[r]
		if n == nil {
			return []models.SuggestedItem{}
		}
	}
	out := make([]models.SuggestedItem, len(n.items))
	copy(out, n.items)
	return out
}

// Build scans all executions newest first and indexes each one. The
// candidate cap is applied greedily in that order, so when a prefix
// overflows it is the recent executions that stay indexed.
func Build(ctx context.Context, st *store.Store, cfg config.SuggestConfig) (*Trie, error) {
	t := New(cfg.MinQueryLen, cfg.MaxQueryLen, cfg.MaxCandidates)
	execs, err := st.AllExecutions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ex := range execs {
		t.Insert(ex.Name, models.SuggestedItem{ID: strconv.FormatInt(ex.ID, 10), Name: ex.Name})
	}
	logger.Info("suggest_index_built", "executions", len(execs), "min_len", cfg.MinQueryLen, "max_len", cfg.MaxQueryLen)
	return t, nil
}
