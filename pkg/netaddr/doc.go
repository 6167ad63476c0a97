// Package netaddr provides fixed-width address values that the memory cursors
// read and write as opaque byte sequences.
package netaddr
