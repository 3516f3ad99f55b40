// Package source provides the ports.SourceReader implementations.
//
// NetworkReader streams frames from an NMC server through the ingest
// pipeline. FileReader reads whitespace-separated sample lines from a text
// file and can follow a file that another process keeps appending to.
package source
