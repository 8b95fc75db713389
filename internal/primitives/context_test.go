package primitives

import "testing"

func TestContextBasic(t *testing.T) {
	ctx := NewContext()
	if _, ok := ctx.Get("nonexistent"); ok {
		t.Error("Get nonexistent should return false")
	}
	ctx.Set("key", 42)
	v, ok := ctx.Get("key")
	if !ok {
		t.Error("Get after Set should return true")
	}
	if vi, okk := v.(int); !okk || vi != 42 {
		t.Errorf("Get value mismatch: got %v (%T)", v, v)
	}
	ctx.Delete("key")
	if _, ok = ctx.Get("key"); ok {
		t.Error("Get after Delete should return false")
	}
	if ctx.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ctx.Len())
	}
}

func TestContextSnapshotIsCopy(t *testing.T) {
	ctx := NewContextFrom(map[string]any{"count": 1})
	snap := ctx.Snapshot()
	snap["count"] = 99
	snap["extra"] = true

	if v, _ := ctx.Get("count"); v != 1 {
		t.Errorf("context mutated through snapshot: count = %v", v)
	}
	if _, ok := ctx.Get("extra"); ok {
		t.Error("context gained key through snapshot")
	}
}

func TestNewContextFromCopiesInput(t *testing.T) {
	seed := map[string]any{"a": 1}
	ctx := NewContextFrom(seed)
	seed["a"] = 2
	if v, _ := ctx.Get("a"); v != 1 {
		t.Errorf("context aliases seed map: a = %v", v)
	}
}
