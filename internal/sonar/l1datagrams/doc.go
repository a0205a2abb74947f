// Package l1datagrams owns Layer 1 (Datagrams) of the sonar transport.
//
// Responsibilities: the fixed-size frame header, splitting header||samples
// into sequence-numbered datagrams bounded by a maximum size, and the
// receiver-side reassembly of those datagrams back into frames.
//
// Dependency rule: L1 depends only on the core sonar types; it has no
// knowledge of fan geometry, playback or rendering.
package l1datagrams
