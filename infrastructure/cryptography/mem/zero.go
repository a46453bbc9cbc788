package mem

import "runtime"

// Wipe overwrites b with zeros. Copies made earlier by the runtime are not reached.
func Wipe(b []byte) {
	clear(b)
	runtime.KeepAlive(b)
}

// WipeKeys zeroes every non-nil key in place.
func WipeKeys(keys ...*[32]byte) {
	for _, k := range keys {
		if k != nil {
			Wipe(k[:])
		}
	}
}
