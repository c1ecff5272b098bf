package rawmem

// SizedMemory is an already-serialized blob: a byte region and its exact
// length, with no cursor. A blob returned by Pack owns its memory and should
// be released once by whoever received it; a blob made with Borrow only looks
// at bytes someone else owns.
type SizedMemory struct {
	Memory []byte
	Size   int

	owned bool
}

// Borrow wraps b without taking ownership of it.
func Borrow(b []byte) SizedMemory {
	return SizedMemory{Memory: b, Size: len(b)}
}

// Own wraps b and takes ownership of it; the caller must not touch b again.
func Own(b []byte) SizedMemory {
	return SizedMemory{Memory: b, Size: len(b), owned: true}
}

func (m SizedMemory) Owned() bool { return m.owned }

// Bytes returns the blob contents. A Size larger than the backing slice is
// truncated to what is actually there.
func (m SizedMemory) Bytes() []byte {
	if m.Size < 0 {
		return nil
	}
	return m.Memory[:min(m.Size, len(m.Memory))]
}

// Clone returns an owned deep copy.
func (m SizedMemory) Clone() SizedMemory {
	b := m.Bytes()
	c := make([]byte, len(b))
	copy(c, b)
	return SizedMemory{Memory: c, Size: len(c), owned: true}
}

// Release drops the blob. An owned blob gives its memory back to the
// collector; a borrowed one only forgets the reference.
func (m *SizedMemory) Release() {
	m.Memory = nil
	m.Size = 0
	m.owned = false
}
