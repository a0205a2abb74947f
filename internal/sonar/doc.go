// Package sonar owns the shared data model of the fan-beam sonar engine.
//
// Responsibilities: the immutable Frame sample grid, the FrameSource
// contract every frame producer implements (recorded logs, raw files,
// live UDP capture, pcap replay, synthetic generators) and the error
// taxonomy shared by transport, playback and rendering.
//
// Dependency rule: this package depends on nothing else in the module.
// Layer packages (l1datagrams, l2fan) and orchestration packages
// (playback, render) depend on it.
package sonar
