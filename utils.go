package rawmem

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// signatureSize is the width of the optional type signature prefix.
const signatureSize = 4

// allocate returns n zeroed bytes, or ErrAllocation when n is negative, above
// limit, or refused by the runtime.
func allocate(n, limit int) (b []byte, err error) {
	if n < 0 || n > limit {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrAllocation, n, limit)
	}
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, fmt.Errorf("%w: %v", ErrAllocation, r)
		}
	}()
	return make([]byte, n), nil
}

// signatureOf hashes the structural description of an ordered type list.
func signatureOf(plans []*typePlan) uint32 {
	var sb strings.Builder
	for i, p := range plans {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.desc)
	}
	return crc32.ChecksumIEEE([]byte(sb.String()))
}
