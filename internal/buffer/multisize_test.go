package buffer

import "testing"

func TestMultiSizePoolNeverServesSmallerClass(t *testing.T) {
	m := NewMultiSizePool(4096, 1<<20)
	buf := m.Get(5000)
	if cap(buf) < 5000 {
		t.Fatalf("expected class capacity >= requested size, got cap=%d", cap(buf))
	}
	if len(buf) != 5000 {
		t.Fatalf("expected returned slice length to equal requested size, got %d", len(buf))
	}
}

func TestMultiSizePoolRoundTrip(t *testing.T) {
	m := NewMultiSizePool(1024, 1<<16)
	buf := m.Get(3000)
	m.Return(buf, 3000)

	again := m.Get(3000)
	if cap(again) != cap(buf) {
		t.Fatalf("expected round-tripped buffer from same class, cap before=%d after=%d", cap(buf), cap(again))
	}
}

func TestMultiSizePoolClassesArePowersOfTwo(t *testing.T) {
	m := NewMultiSizePool(1000, 1<<20)
	for _, c := range m.classes {
		if c&(c-1) != 0 {
			t.Errorf("class %d is not a power of two", c)
		}
	}
}
