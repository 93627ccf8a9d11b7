//go:build topo1to1

package topology

var Selected = OneToOne
