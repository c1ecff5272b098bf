// Package rawmem packs fixed-layout values into flat byte blobs and reads
// them back.
//
// RawMemory is a growable byte region with one read/write cursor, for
// records built a piece at a time. Pack and Unpack handle the other case: an
// ordered tuple of values laid out back to back in a single SizedMemory,
// recovered later by unpacking into pointers of the same types in the same
// order.
//
// Only fixed-layout types can be packed: booleans, sized numbers, and arrays
// or structs made only of those. Anything holding a pointer, slice, map,
// string or interface is rejected with ErrNotFixedLayout.
package rawmem
