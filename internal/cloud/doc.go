// Package cloud owns the point-cloud frame model.
//
// A Frame is one captured cloud at a single time instant. Frames are
// immutable by convention: once handed to the registration engine the
// caller may keep reading a frame but must not mutate it. Transform
// returns a new frame rather than modifying in place.
package cloud
