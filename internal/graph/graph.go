// Package graph is the in-memory pool-graph index described in §4.3:
// tokens as nodes, pools as edges, with neighbour lookup, pool-by-id
// lookup, and a single-writer/many-reader ApplySnapshot.
//
// Structurally this is the teacher's (bgscr-dex-aggregator)
// internal/aggregator/path_finder.go RefreshGraph: build a fresh
// adjacency/pool index, then swap it in under a lock so readers never
// see a half-built graph. This repository tightens that into the
// lock-free copy-on-write §9 prefers: the whole index is one
// immutable snapshot value, published via atomic.Pointer, so a reader
// that grabs a snapshot finishes its request on fully consistent data
// even if a writer publishes a new one mid-request (no torn reads
// between hops). Snapshot application itself is grounded on
// defistate-client-go's protocols/uniswapv3/differ.go Differ/
// poolChanged diffing, generalized from "diff two full snapshots" to
// "merge one incremental batch of updates into the running graph" —
// applying the same batch twice is a no-op (round-trip idempotence,
// testable property in §8) because each pool is keyed by id and
// replaced wholesale rather than accumulated.
package graph

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"routing-engine/internal/types"
)

var (
	ErrDuplicatePoolID  = errors.New("graph: duplicate pool id in snapshot batch")
	ErrTokenOrder       = errors.New("graph: token0 must sort below token1")
	ErrTickSpacingAlign = errors.New("graph: initialized tick not a multiple of tick spacing")
)

// Neighbour pairs an adjacent token with the pool connecting to it.
type Neighbour struct {
	Token  string
	PoolID string
}

type snapshot struct {
	tokens     map[string]types.Token
	pools      map[string]*types.Pool
	adjacency  map[string][]Neighbour
	updatedAt  int64
}

func emptySnapshot() *snapshot {
	return &snapshot{
		tokens:    make(map[string]types.Token),
		pools:     make(map[string]*types.Pool),
		adjacency: make(map[string][]Neighbour),
	}
}

// Graph is the shared-read, single-writer pool index.
type Graph struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex // serializes writers; readers never block
}

// New returns an empty graph.
func New() *Graph {
	g := &Graph{}
	g.current.Store(emptySnapshot())
	return g
}

func normalize(addr string) string {
	return strings.ToLower(addr)
}

// validatePool checks invariants 1 and 3 against a single pool.
func validatePool(p *types.Pool) error {
	if strings.ToLower(p.Token0.Address) >= strings.ToLower(p.Token1.Address) {
		return ErrTokenOrder
	}
	if p.TickSpacing <= 0 {
		return nil
	}
	for _, tk := range p.Ticks {
		if tk.Index%p.TickSpacing != 0 {
			return ErrTickSpacingAlign
		}
	}
	return nil
}

// ApplySnapshot batch-applies new or changed pool states. It is the
// single writer's only entry point; concurrent callers are serialized
// by writeMu, but in-flight readers are never blocked (§4.3, §5).
func (g *Graph) ApplySnapshot(updates []*types.Pool) error {
	seen := make(map[string]bool, len(updates))
	for _, u := range updates {
		if seen[u.ID] {
			return ErrDuplicatePoolID
		}
		seen[u.ID] = true
		if err := validatePool(u); err != nil {
			return err
		}
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	old := g.current.Load()
	next := &snapshot{
		tokens:    make(map[string]types.Token, len(old.tokens)),
		pools:     make(map[string]*types.Pool, len(old.pools)+len(updates)),
		adjacency: make(map[string][]Neighbour, len(old.adjacency)),
	}
	for k, v := range old.tokens {
		next.tokens[k] = v
	}
	for k, v := range old.pools {
		next.pools[k] = v
	}
	for k, v := range old.adjacency {
		cp := make([]Neighbour, len(v))
		copy(cp, v)
		next.adjacency[k] = cp
	}

	for _, u := range updates {
		pool := u.Clone()
		t0 := normalize(pool.Token0.Address)
		t1 := normalize(pool.Token1.Address)

		next.tokens[t0] = pool.Token0
		next.tokens[t1] = pool.Token1

		if _, existed := next.pools[pool.ID]; !existed {
			next.adjacency[t0] = appendNeighbourIfAbsent(next.adjacency[t0], Neighbour{Token: t1, PoolID: pool.ID})
			next.adjacency[t1] = appendNeighbourIfAbsent(next.adjacency[t1], Neighbour{Token: t0, PoolID: pool.ID})
		}
		next.pools[pool.ID] = pool
	}

	next.updatedAt = nowUnix()
	g.current.Store(next)
	return nil
}

func appendNeighbourIfAbsent(list []Neighbour, n Neighbour) []Neighbour {
	for _, existing := range list {
		if existing.PoolID == n.PoolID {
			return list
		}
	}
	return append(list, n)
}

// Neighbours returns every (other_token, pool_id) pair incident to
// token.
func (g *Graph) Neighbours(token string) []Neighbour {
	snap := g.current.Load()
	return snap.adjacency[normalize(token)]
}

// Pool returns the pool with the given id.
func (g *Graph) Pool(poolID string) (*types.Pool, bool) {
	snap := g.current.Load()
	p, ok := snap.pools[poolID]
	return p, ok
}

// HasToken reports whether token has ever appeared in an applied
// snapshot.
func (g *Graph) HasToken(token string) bool {
	snap := g.current.Load()
	_, ok := snap.tokens[normalize(token)]
	return ok
}

// Token returns the registered Token for an address.
func (g *Graph) Token(addr string) (types.Token, bool) {
	snap := g.current.Load()
	t, ok := snap.tokens[normalize(addr)]
	return t, ok
}

// PoolsBetween returns every pool id connecting tokenA and tokenB
// (parallel edges across fee tiers are all returned).
func (g *Graph) PoolsBetween(tokenA, tokenB string) []string {
	b := normalize(tokenB)
	var ids []string
	for _, n := range g.Neighbours(tokenA) {
		if n.Token == b {
			ids = append(ids, n.PoolID)
		}
	}
	return ids
}

// Stats summarizes the graph for /health.
func (g *Graph) Stats() types.GraphStats {
	snap := g.current.Load()
	return types.GraphStats{
		TokenCount:            len(snap.tokens),
		PoolCount:             len(snap.pools),
		LastUpdateUnixSeconds: snap.updatedAt,
	}
}

// time.Now is wrapped so tests can exercise staleness without relying
// on wall-clock flakiness; production callers get the real clock.
var nowUnix = func() int64 { return time.Now().Unix() }
