package extensibility

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/comalice/statechart/internal/core"
	"github.com/comalice/statechart/internal/primitives"
)

// Operands in expressions are resolved in this order:
//
//	event          the event data
//	event.field    a field of map event data
//	123, 1.5       numbers
//	true, false    booleans
//	nil
//	"quoted"       strings
//	key            the context value under key, if present
//	word           otherwise the bare word as a string

// ParseGuard compiles "key op operand", op one of == != > < >= <=.
func ParseGuard(expr string) (core.GuardFunc, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return nil, fmt.Errorf("guard %q: want \"key op value\"", expr)
	}
	key, op, operand := parts[0], parts[1], parts[2]
	switch op {
	case "==", "!=", ">", "<", ">=", "<=":
	default:
		return nil, fmt.Errorf("guard %q: unknown operator %q", expr, op)
	}

	return func(ctx primitives.ContextReader, ev primitives.Event) (bool, error) {
		v, ok := ctx.Get(key)
		if !ok {
			return false, nil
		}
		want := operandValue(operand, ctx, ev)
		switch op {
		case "==":
			return equal(v, want), nil
		case "!=":
			return !equal(v, want), nil
		}
		a, aok := toFloat(v)
		b, bok := toFloat(want)
		if !aok || !bok {
			return false, fmt.Errorf("guard %q: cannot compare %T with %T", expr, v, want)
		}
		switch op {
		case ">":
			return a > b, nil
		case "<":
			return a < b, nil
		case ">=":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	}, nil
}

// ParseAction compiles an assignment: "key = operand", "key += operand" or
// "key -= operand". Arithmetic keeps integers integral.
func ParseAction(expr string) (core.ActionFunc, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return nil, fmt.Errorf("action %q: want \"key op value\"", expr)
	}
	key, op, operand := parts[0], parts[1], parts[2]
	if err := primitives.ValidateID(key); err != nil {
		return nil, fmt.Errorf("action %q: %w", expr, err)
	}

	switch op {
	case "=":
		return func(ctx *primitives.Context, ev primitives.Event, _ core.Sender) error {
			ctx.Set(key, operandValue(operand, ctx, ev))
			return nil
		}, nil
	case "+=", "-=":
		sign := int64(1)
		if op == "-=" {
			sign = -1
		}
		return func(ctx *primitives.Context, ev primitives.Event, _ core.Sender) error {
			cur, ok := ctx.Get(key)
			if !ok {
				cur = 0
			}
			delta := operandValue(operand, ctx, ev)
			sum, err := add(cur, delta, sign)
			if err != nil {
				return fmt.Errorf("action %q: %w", expr, err)
			}
			ctx.Set(key, sum)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("action %q: unknown operator %q", expr, op)
}

func operandValue(tok string, ctx primitives.ContextReader, ev primitives.Event) any {
	switch {
	case tok == "event":
		return ev.Data
	case strings.HasPrefix(tok, "event."):
		if m, ok := ev.Data.(map[string]any); ok {
			return m[strings.TrimPrefix(tok, "event.")]
		}
		return nil
	case tok == "true":
		return true
	case tok == "false":
		return false
	case tok == "nil":
		return nil
	case len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"':
		return tok[1 : len(tok)-1]
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	if v, ok := ctx.Get(tok); ok {
		return v
	}
	return tok
}

func equal(a, b any) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}

func add(cur, delta any, sign int64) (any, error) {
	ci, cok := toInt(cur)
	di, dok := toInt(delta)
	_, curFloat := cur.(float64)
	if cok && dok && !curFloat {
		return ci + int(sign)*di, nil
	}
	cf, cok := toFloat(cur)
	df, dok := toFloat(delta)
	if !cok || !dok {
		return nil, fmt.Errorf("cannot add %T and %T", cur, delta)
	}
	return cf + float64(sign)*df, nil
}

// Assign returns an action that sets key to a fixed value.
func Assign(key string, value any) core.ActionFunc {
	return func(ctx *primitives.Context, _ primitives.Event, _ core.Sender) error {
		ctx.Set(key, value)
		return nil
	}
}
