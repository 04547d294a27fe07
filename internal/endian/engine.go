// Package endian supplies the single byte-order engine the row and SSTable
// codecs encode and decode against.
//
// Unlike a general-purpose byte-order package, this one does not expose a
// big-endian engine: the on-disk row format fixes little-endian as the wire
// order (see primitives.Sink), so there is nothing to switch between, and a
// configurable engine would just be an unused knob.
package endian

import "encoding/binary"

// Engine combines ByteOrder and AppendByteOrder so callers get both the
// Put*/Uint* accessors and the allocation-friendly Append* helpers from a
// single value.
type Engine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// LittleEndian is the engine used throughout this module's on-disk formats.
var LittleEndian Engine = binary.LittleEndian
