//go:build topo1to2

package topology

var Selected = OneToTwo
