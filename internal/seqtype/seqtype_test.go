package seqtype

import "testing"

func TestType_StringRoundTrip(t *testing.T) {
	for ty := Type(0); ty < typeCount; ty++ {
		got, err := ParseType(ty.String())
		if err != nil {
			t.Fatalf("ParseType(%q): %v", ty.String(), err)
		}
		if got != ty {
			t.Errorf("expected %v, got %v", ty, got)
		}
	}
	if _, err := ParseType("Bogus"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestBuiltIn_ExcludesCustom(t *testing.T) {
	types := BuiltIn()
	if len(types) != int(typeCount)-1 {
		t.Errorf("expected %d built-in types, got %d", typeCount-1, len(types))
	}
	for _, ty := range types {
		if ty == Custom {
			t.Error("Custom must not be a built-in type")
		}
	}
}

func TestType_Classification(t *testing.T) {
	tests := []struct {
		ty          Type
		animation   bool
		interaction bool
		jank        bool
		thread      Thread
	}{
		{CompositorAnimation, true, false, true, Compositor},
		{MainThreadAnimation, true, false, true, Main},
		{TouchScroll, false, true, true, Compositor},
		{PinchZoom, false, true, true, Compositor},
		{Universal, false, false, false, Slower},
		{Custom, false, false, false, Main},
		{Video, true, false, true, Compositor},
	}

	for _, tt := range tests {
		t.Run(tt.ty.String(), func(t *testing.T) {
			if tt.ty.IsAnimation() != tt.animation {
				t.Errorf("IsAnimation: expected %v", tt.animation)
			}
			if tt.ty.IsInteraction() != tt.interaction {
				t.Errorf("IsInteraction: expected %v", tt.interaction)
			}
			if tt.ty.ReportsJank() != tt.jank {
				t.Errorf("ReportsJank: expected %v", tt.jank)
			}
			if tt.ty.DefaultThread() != tt.thread {
				t.Errorf("DefaultThread: expected %v, got %v", tt.thread, tt.ty.DefaultThread())
			}
		})
	}
}

func TestParseThread(t *testing.T) {
	for _, s := range []string{"main", "MainThread"} {
		if th, err := ParseThread(s); err != nil || th != Main {
			t.Errorf("ParseThread(%q) = %v, %v", s, th, err)
		}
	}
	if _, err := ParseThread("gpu"); err == nil {
		t.Error("expected error for unknown thread")
	}
}
