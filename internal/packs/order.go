package packs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// InstallOrder sorts bundles so every bundle follows the bundles it depends
// on. Ties are broken by name. Dependencies outside the set do not affect
// ordering. Bundles on or behind a dependency cycle are left out and named
// in an ErrDependencyCycle error; the rest are still returned in order.
func InstallOrder(bundles []*Bundle) ([]*Bundle, error) {
	byName := make(map[string]*Bundle, len(bundles))
	indegree := make(map[string]int, len(bundles))
	for _, b := range bundles {
		byName[b.Name()] = b
		indegree[b.Name()] = 0
	}

	dependents := make(map[string][]string)
	for _, b := range bundles {
		for _, dep := range b.Manifest.Dependencies {
			switch _, ok := byName[dep]; {
			case dep == b.Name():
				indegree[dep]++
			case ok:
				indegree[b.Name()]++
				dependents[dep] = append(dependents[dep], b.Name())
			}
		}
	}

	var ready []string
	for name, n := range indegree {
		if n == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	ordered := make([]*Bundle, 0, len(bundles))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		ordered = append(ordered, byName[name])

		var next []string
		for _, d := range dependents[name] {
			indegree[d]--
			if indegree[d] == 0 {
				next = append(next, d)
			}
		}
		ready = append(ready, next...)
		sort.Strings(ready)
	}

	if len(ordered) == len(bundles) {
		return ordered, nil
	}
	var stuck []string
	for name, n := range indegree {
		if n > 0 {
			stuck = append(stuck, name)
		}
	}
	sort.Strings(stuck)
	return ordered, fmt.Errorf("%w: %s", types.ErrDependencyCycle, strings.Join(stuck, ", "))
}
