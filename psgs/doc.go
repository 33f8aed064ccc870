/*
Package psgs provides the types, constants, and functions that have no other
dependencies and are used by every layer of the persistent graph store: leveled
logging, the error taxonomy shared by the graph and storage packages, and the
small bit-level helpers used by the on-disk layout.

The graph model itself lives in package graph, the node index engines and the
memory-mapped data file in package storage, and fixed-size edge payload codecs
in package record.
*/
package psgs
