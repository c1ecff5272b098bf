package rawmem

// Byte size units.
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB
)
