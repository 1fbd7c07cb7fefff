package sqlcache

import (
	"sort"

	"github.com/jward/sqlcache/internal/index"
	"github.com/jward/sqlcache/internal/resolve"
	"github.com/jward/sqlcache/internal/source"
	"github.com/jward/sqlcache/internal/store"
)

// node is one indexed entity of a tracked file.
type node struct {
	role source.Role
	name string
}

func (n node) String() string {
	return string(n.role) + ":" + n.name
}

// graph is the file -> entity -> bundle dependency graph of one run. It holds
// the edges of both the previous and the current resolution so that an
// entity a query stopped using still explains the rebuild.
type graph struct {
	dependents map[node]map[string]bool
}

func newGraph() *graph {
	return &graph{dependents: make(map[node]map[string]bool)}
}

func (g *graph) add(query string, deps []node) {
	for _, n := range deps {
		set := g.dependents[n]
		if set == nil {
			set = make(map[string]bool)
			g.dependents[n] = set
		}
		set[query] = true
	}
}

func (g *graph) addRefs(refs []store.BundleRef) {
	for _, r := range refs {
		g.add(r.QueryName, []node{{role: source.Role(r.FileRole), name: r.RefName}})
	}
}

// reasons maps each bundle reached from a changed entity to the sorted
// entities that reach it.
func (g *graph) reasons(changed []node) map[string][]string {
	out := make(map[string][]string)
	for _, n := range changed {
		for q := range g.dependents[n] {
			out[q] = append(out[q], n.String())
		}
	}
	for q := range out {
		sort.Strings(out[q])
	}
	return out
}

// queryDeps lists the entities a resolved query is assembled from.
func queryDeps(query string, res resolve.Result) []node {
	deps := []node{{role: source.RoleQuery, name: query}}
	for _, t := range res.Tables {
		deps = append(deps, node{role: source.RoleSchema, name: t})
	}
	for _, c := range res.Code {
		deps = append(deps, node{role: c.Role, name: c.Key})
	}
	return deps
}

// changedEntities diffs the committed and current index of one role. An
// entity counts as changed when it appeared, disappeared, moved or its text
// changed.
func changedEntities(role source.Role, prev, cur *index.File) []node {
	if prev == cur {
		return nil
	}
	var out []node
	for _, name := range cur.Names() {
		now, _ := cur.Lookup(name)
		was, ok := prev.Lookup(name)
		if !ok || was.Hash != now.Hash || was.StartLine != now.StartLine || was.EndLine != now.EndLine {
			out = append(out, node{role: role, name: name})
		}
	}
	for _, name := range prev.Names() {
		if _, ok := cur.Lookup(name); !ok {
			out = append(out, node{role: role, name: name})
		}
	}
	return out
}
