// Package l2fan owns Layer 2 (Fan) of the sonar data model.
//
// Responsibilities: the inverse polar-to-Cartesian mapping from raster
// pixels to (beam, range) sample coordinates, the two-colour intensity
// ramp, bilinear sampling of a frame into a raster, and the ring/spoke
// geometry used to annotate the fan.
// Key types: Params, Mapping, Cache, Ramp.
//
// Dependency rule: L2 may depend on L1 and the core sonar types, never on
// playback or rendering orchestration.
package l2fan
