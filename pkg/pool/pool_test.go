package pool

import "testing"

func TestFixedBufferPool(t *testing.T) {
	size := int64(1024)
	fp := NewFixedBuffer(size)

	// Get
	ptr := fp.Get()
	if len(*ptr) != int(size) {
		t.Errorf("got len %d, want %d", len(*ptr), size)
	}
	if cap(*ptr) != int(size) {
		t.Errorf("got cap %d, want %d", cap(*ptr), size)
	}

	// Put restores full length even if the caller shrank the slice.
	*ptr = (*ptr)[:10]
	fp.Put(ptr)
	again := fp.Get()
	if len(*again) != int(size) {
		t.Errorf("got len %d after Put/Get cycle, want %d", len(*again), size)
	}

	// Put invalid size (should be ignored)
	small := make([]byte, 10)
	fp.Put(&small)

	// Put nil
	fp.Put(nil)
}
