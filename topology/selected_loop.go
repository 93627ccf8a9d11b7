//go:build !topo1to1 && !topo1to2 && !topo2to2

package topology

// Selected is the topology this binary was built for.
// Build with -tags topo1to1, topo1to2 or topo2to2 to change it.
var Selected = Loop
