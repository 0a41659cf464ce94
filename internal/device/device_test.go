package device

import "testing"

func TestProfileForKnownKinds(t *testing.T) {
	cases := []struct {
		kind          Kind
		wantSeqMB     float64
		wantQueueDepth int
	}{
		{SSD, 500, 32},
		{HDD, 120, 4},
		{Network, 100, 1},
		{RamDisk, 2000, 64},
	}
	for _, c := range cases {
		p := ProfileFor(c.kind)
		if p.SequentialReadMBs != c.wantSeqMB {
			t.Errorf("%s: SequentialReadMBs = %v, want %v", c.kind, p.SequentialReadMBs, c.wantSeqMB)
		}
		if p.QueueDepth != c.wantQueueDepth {
			t.Errorf("%s: QueueDepth = %v, want %v", c.kind, p.QueueDepth, c.wantQueueDepth)
		}
	}
}

func TestKindStringRoundTrip(t *testing.T) {
	kinds := []Kind{SSD, HDD, Network, RamDisk, Unknown}
	names := map[Kind]string{SSD: "ssd", HDD: "hdd", Network: "network", RamDisk: "ramdisk", Unknown: "unknown"}
	for _, k := range kinds {
		if got := k.String(); got != names[k] {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, names[k])
		}
	}
}

func TestClassifyCachesByMountRoot(t *testing.T) {
	dir := t.TempDir()
	c := NewClassifier()

	kind1, prof1, _, err := c.Classify(dir)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	c.mu.RLock()
	cacheSize := len(c.cache)
	c.mu.RUnlock()
	if cacheSize != 1 {
		t.Fatalf("expected 1 cache entry after first classify, got %d", cacheSize)
	}

	kind2, prof2, _, err := c.Classify(dir)
	if err != nil {
		t.Fatalf("Classify (cached): %v", err)
	}
	if kind1 != kind2 || prof1 != prof2 {
		t.Fatalf("expected cached classification to be stable, got %v/%v then %v/%v", kind1, prof1, kind2, prof2)
	}
}

func TestClassifyNonExistentPathFails(t *testing.T) {
	c := NewClassifier()
	if _, _, _, err := c.Classify("/does/not/exist/at/all/ferrocp"); err == nil {
		t.Fatalf("expected classification of an unresolvable path to fail with DeviceDetection")
	}
}
