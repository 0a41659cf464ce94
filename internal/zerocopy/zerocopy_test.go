package zerocopy

import (
	"errors"
	"testing"
)

type fakeProbe struct {
	capableResult bool
	method        Method
	methodOK      bool
	copyBytes     int64
	copyErr       error
}

func (f *fakeProbe) capable() bool { return f.capableResult }

func (f *fakeProbe) preferredMethod(string, string) (Method, bool) {
	return f.method, f.methodOK
}

func (f *fakeProbe) copy(string, string, int64, Method) (int64, error) {
	return f.copyBytes, f.copyErr
}

func newTestDispatcher(p *fakeProbe) *Dispatcher {
	return &Dispatcher{minSize: DefaultMinSize, maxSize: DefaultMaxSize, probe: p}
}

func TestTryZeroCopyOutOfSizeBoundsIsUnavailable(t *testing.T) {
	d := newTestDispatcher(&fakeProbe{capableResult: true, methodOK: true})
	out := d.TryZeroCopy("/a", "/b", 1, true) // below DefaultMinSize
	if out.Status != Unavailable {
		t.Fatalf("expected Unavailable, got %+v", out)
	}
}

func TestTryZeroCopyIneligibleMethodIsUnavailable(t *testing.T) {
	d := newTestDispatcher(&fakeProbe{capableResult: true, methodOK: false})
	out := d.TryZeroCopy("/a", "/b", 1<<20, true)
	if out.Status != Unavailable {
		t.Fatalf("expected Unavailable, got %+v", out)
	}
}

func TestTryZeroCopySuccess(t *testing.T) {
	d := newTestDispatcher(&fakeProbe{
		capableResult: true, method: MethodCopyFileRange, methodOK: true,
		copyBytes: 1 << 20,
	})
	out := d.TryZeroCopy("/a", "/b", 1<<20, true)
	if out.Status != Copied || out.Bytes != 1<<20 || out.Method != MethodCopyFileRange {
		t.Fatalf("expected successful copy outcome, got %+v", out)
	}
}

func TestTryZeroCopyFailurePropagates(t *testing.T) {
	boom := errors.New("boom")
	d := newTestDispatcher(&fakeProbe{
		capableResult: true, method: MethodSendfile, methodOK: true,
		copyErr: boom,
	})
	out := d.TryZeroCopy("/a", "/b", 1<<20, true)
	if out.Status != Failed || out.Err != boom {
		t.Fatalf("expected Failed with propagated error, got %+v", out)
	}
}

func TestTryZeroCopyNotCapableIsUnavailable(t *testing.T) {
	d := newTestDispatcher(&fakeProbe{capableResult: false, methodOK: true})
	out := d.TryZeroCopy("/a", "/b", 1<<20, true)
	if out.Status != Unavailable {
		t.Fatalf("expected Unavailable when probe reports not capable, got %+v", out)
	}
}

func TestTryZeroCopyExistingDestinationWithoutOverwriteIsUnavailable(t *testing.T) {
	d := newTestDispatcher(&fakeProbe{capableResult: true, methodOK: true})
	// zerocopy_test.go itself certainly exists.
	out := d.TryZeroCopy("zerocopy.go", "zerocopy_test.go", 1<<20, false)
	if out.Status != Unavailable {
		t.Fatalf("expected Unavailable when destination exists and overwrite=false, got %+v", out)
	}
}
