//go:build topo2to2

package topology

var Selected = TwoToTwo
