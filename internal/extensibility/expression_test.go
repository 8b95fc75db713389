package extensibility

import (
	"strings"
	"testing"

	"github.com/comalice/statechart/internal/primitives"
)

func TestParseGuard(t *testing.T) {
	ctx := primitives.NewContextFrom(map[string]any{
		"count": 2,
		"ratio": 0.5,
		"name":  "ada",
		"flag":  true,
		"limit": 3,
	})

	tests := []struct {
		name    string
		expr    string
		data    any
		want    bool
		wantErr string
	}{
		{"greater or equal", "count >= 2", nil, true, ""},
		{"greater", "count > 2", nil, false, ""},
		{"less than float", "ratio < 1", nil, true, ""},
		{"int equals float", "count == 2.0", nil, true, ""},
		{"not equal", "count != 3", nil, true, ""},
		{"bare word", "name == ada", nil, true, ""},
		{"quoted string", `name == "bob"`, nil, false, ""},
		{"boolean", "flag == true", nil, true, ""},
		{"context operand", "count < limit", nil, true, ""},
		{"event operand", "count < event", 5, true, ""},
		{"event field", "count == event.n", map[string]any{"n": 2}, true, ""},
		{"missing event field", "count == event.n", "scalar", false, ""},
		{"missing key", "attempts >= 1", nil, false, ""},
		{"non-numeric comparison", "name > 3", nil, false, "cannot compare"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGuard(tt.expr)
			if err != nil {
				t.Fatalf("ParseGuard(%q): %v", tt.expr, err)
			}
			got, err := g(ctx, primitives.NewEvent("E", tt.data))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParseGuardRejects(t *testing.T) {
	for _, expr := range []string{"", "count", "count >=", "count ~ 2", "a == b == c"} {
		if _, err := ParseGuard(expr); err == nil {
			t.Errorf("ParseGuard(%q) succeeded, want error", expr)
		}
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		initial map[string]any
		data    any
		key     string
		want    any
		wantErr string
	}{
		{"increment", "count += 1", map[string]any{"count": 1}, nil, "count", 2, ""},
		{"decrement missing", "count -= 2", nil, nil, "count", -2, ""},
		{"float arithmetic", "total += 1.5", map[string]any{"total": 1}, nil, "total", 2.5, ""},
		{"float stays float", "total += 1", map[string]any{"total": 0.5}, nil, "total", 1.5, ""},
		{"assign event", "user = event", nil, "ada", "user", "ada", ""},
		{"assign event field", "id = event.id", nil, map[string]any{"id": 7}, "id", 7, ""},
		{"assign string", `name = "bob"`, nil, nil, "name", "bob", ""},
		{"assign nil", "user = nil", map[string]any{"user": "ada"}, nil, "user", nil, ""},
		{"add from context", "count += step", map[string]any{"count": 1, "step": 4}, nil, "count", 5, ""},
		{"add string", "count += name", map[string]any{"count": 1, "name": "ada"}, nil, "", nil, "cannot add"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := ParseAction(tt.expr)
			if err != nil {
				t.Fatalf("ParseAction(%q): %v", tt.expr, err)
			}
			ctx := primitives.NewContextFrom(tt.initial)
			err = fn(ctx, primitives.NewEvent("E", tt.data), nil)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got, _ := ctx.Get(tt.key); got != tt.want {
				t.Errorf("%s = %v (%T), want %v (%T)", tt.key, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseActionRejects(t *testing.T) {
	for _, expr := range []string{"", "count", "count += ", "count *= 2", " = 2 3"} {
		if _, err := ParseAction(expr); err == nil {
			t.Errorf("ParseAction(%q) succeeded, want error", expr)
		}
	}
}

func TestAssign(t *testing.T) {
	ctx := primitives.NewContext()
	if err := Assign("mode", "auto")(ctx, primitives.Event{}, nil); err != nil {
		t.Fatal(err)
	}
	if v, _ := ctx.Get("mode"); v != "auto" {
		t.Errorf("mode = %v, want auto", v)
	}
}
