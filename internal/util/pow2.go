package util

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool {
	return x != 0 && (x&(x-1)) == 0
}

// NextPow2 returns the smallest power of two >= x.
// x <= 1 yields 1; a result that would overflow 64 bits is clamped to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	x--
	for shift := uint(1); shift < 64; shift <<= 1 {
		x |= x >> shift
	}
	x++
	if x == 0 {
		return 1 << 63
	}
	return x
}
