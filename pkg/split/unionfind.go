package split

import "github.com/sievedata/sieve-engine/pkg/graph"

// unionFind tracks equivalence classes of indexed attributes.
type unionFind struct {
	parent map[graph.IndexedAttribute]graph.IndexedAttribute
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[graph.IndexedAttribute]graph.IndexedAttribute)}
}

func (u *unionFind) find(x graph.IndexedAttribute) graph.IndexedAttribute {
	root, ok := u.parent[x]
	if !ok {
		u.parent[x] = x
		return x
	}
	if root == x {
		return x
	}
	r := u.find(root)
	u.parent[x] = r
	return r
}

// union merges the classes of a and b. It reports false when both were
// already in one class, i.e. the new equality closes a cycle.
func (u *unionFind) union(a, b graph.IndexedAttribute) bool {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return false
	}
	u.parent[ra] = rb
	return true
}

// ConsistentHead reports whether every head equality adds information
// over the body: seeded with the body's equalities, each head equality
// must join two previously distinct classes. A head that repeats a body
// equality, repeats itself transitively, or closes any cycle in the
// equality graph is rejected.
func ConsistentHead(body, head []graph.JoinableIndexedAttributes) bool {
	uf := newUnionFind()
	for _, p := range body {
		uf.union(p.A, p.B)
	}
	for _, eq := range head {
		if !uf.union(eq.A, eq.B) {
			return false
		}
	}
	return true
}
