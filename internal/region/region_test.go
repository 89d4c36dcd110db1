package region

import (
	"testing"
	"unsafe"
)

func uintptr_[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}

func TestAllocAdvancesCursor(t *testing.T) {
	buf := make([]byte, 64)
	With(buf, func(r *Region) struct{} {
		free0 := r.Free()

		x, err := Alloc(r, uint8(1))
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}

		if *x != 1 {
			t.Fatalf("got %d, want 1", *x)
		}

		if r.Free() != free0-1 {
			t.Fatalf("free = %d, want %d", r.Free(), free0-1)
		}

		return struct{}{}
	})
}

func TestAllocAlignment(t *testing.T) {
	buf := make([]byte, 64)
	With(buf, func(r *Region) struct{} {
		// Force a one-byte misalignment, then allocate a type with
		// alignment 8 and check the returned pointer respects it.
		if _, err := Alloc(r, uint8(0)); err != nil {
			t.Fatalf("alloc: %v", err)
		}

		p, err := Alloc(r, uint64(0xdeadbeef))
		if err != nil {
			t.Fatalf("alloc: %v", err)
		}

		if uintptr_(p)%8 != 0 {
			t.Fatalf("misaligned pointer")
		}

		if *p != 0xdeadbeef {
			t.Fatalf("got %x", *p)
		}

		return struct{}{}
	})
}

func TestAllocOomLeavesCursorUnchanged(t *testing.T) {
	buf := make([]byte, 4)
	With(buf, func(r *Region) struct{} {
		free0 := r.Free()

		if _, err := Alloc(r, [16]byte{}); err != ErrOom {
			t.Fatalf("err = %v, want ErrOom", err)
		}

		if r.Free() != free0 {
			t.Fatalf("free changed after failed alloc: %d != %d", r.Free(), free0)
		}

		return struct{}{}
	})
}

func TestAllocArrayInitializesInOrder(t *testing.T) {
	buf := make([]byte, 64)
	With(buf, func(r *Region) struct{} {
		s, err := AllocArray(r, 5, func(i int) int { return i * i })
		if err != nil {
			t.Fatalf("alloc array: %v", err)
		}

		for i, v := range s {
			if v != i*i {
				t.Fatalf("s[%d] = %d, want %d", i, v, i*i)
			}
		}

		return struct{}{}
	})
}

func TestAllocArrayDefaultZeroes(t *testing.T) {
	buf := make([]byte, 64)
	With(buf, func(r *Region) struct{} {
		s, err := AllocArrayDefault[float64](r, 3)
		if err != nil {
			t.Fatalf("alloc array default: %v", err)
		}

		for _, v := range s {
			if v != 0 {
				t.Fatalf("expected zero value, got %v", v)
			}
		}

		return struct{}{}
	})
}

func TestAllocArrayOverflow(t *testing.T) {
	buf := make([]byte, 64)
	With(buf, func(r *Region) struct{} {
		_, err := AllocArray(r, 1<<62, func(int) uint64 { return 0 })
		if err != ErrOom {
			t.Fatalf("err = %v, want ErrOom", err)
		}

		return struct{}{}
	})
}

// TestScratch mirrors the original Rust mem::test_scratch: a parent
// allocation before the scratch scope, one allocation from each side
// during the scope, and a parent allocation afterwards all coexist;
// only the scratch allocation is reclaimed.
func TestScratch(t *testing.T) {
	buf := make([]byte, 4)

	With(buf, func(r *Region) struct{} {
		x, err := Alloc(r, uint8(0))
		if err != nil {
			t.Fatalf("alloc x: %v", err)
		}

		err = r.WithScratch(2, func(parent, scratch *Region) {
			y, err := Alloc(parent, uint8(1))
			if err != nil {
				t.Fatalf("alloc y: %v", err)
			}

			z, err := Alloc(scratch, uint8(2))
			if err != nil {
				t.Fatalf("alloc z: %v", err)
			}

			if *x != 0 || *y != 1 || *z != 2 {
				t.Fatalf("got (%d, %d, %d), want (0, 1, 2)", *x, *y, *z)
			}

			if _, err := Alloc(parent, uint8(0)); err != ErrOom {
				t.Fatalf("expected parent to be full during scratch, err = %v", err)
			}
		})
		if err != nil {
			t.Fatalf("with scratch: %v", err)
		}

		z, err := Alloc(r, uint8(3))
		if err != nil {
			t.Fatalf("alloc z: %v", err)
		}

		if *x != 0 || *z != 3 {
			t.Fatalf("got (%d, %d), want (0, 3)", *x, *z)
		}

		return struct{}{}
	})

	want := []byte{0, 1, 3, 0}
	for i, b := range buf {
		if b != want[i] {
			t.Fatalf("buf = %v, want %v", buf, want)
		}
	}
}

func TestWithScratchFreeAccounting(t *testing.T) {
	buf := make([]byte, 128)
	With(buf, func(r *Region) struct{} {
		before := r.Free()

		err := r.WithScratch(32, func(parent, scratch *Region) {
			if _, err := Alloc(parent, uint64(0)); err != nil {
				t.Fatalf("alloc parent: %v", err)
			}

			if _, err := Alloc(scratch, [16]byte{}); err != nil {
				t.Fatalf("alloc scratch: %v", err)
			}
		})
		if err != nil {
			t.Fatalf("with scratch: %v", err)
		}

		used := before - r.Free()
		if used < 8 || used > 8+7 {
			t.Fatalf("free dropped by %d, want in [8, 15]", used)
		}

		return struct{}{}
	})
}

func TestWithScratchOomWhenTooLarge(t *testing.T) {
	buf := make([]byte, 8)
	With(buf, func(r *Region) struct{} {
		err := r.WithScratch(9, func(*Region, *Region) {
			t.Fatal("f must not run when scratch size exceeds free bytes")
		})
		if err != ErrOom {
			t.Fatalf("err = %v, want ErrOom", err)
		}

		return struct{}{}
	})
}
