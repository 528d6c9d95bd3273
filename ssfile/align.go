package ssfile

// alignSize rounds size up to the align boundary; align must be a power of two.
func alignSize(size, align int) int {
	return (size + align - 1) &^ (align - 1)
}

// padding returns the zero bytes needed to bring size to the align boundary.
func padding(size, align int) []byte {
	return make([]byte, alignSize(size, align)-size)
}
