package interpreter

import (
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	e := NewExprEvaluator()

	t.Run("arithmetic and environment access", func(t *testing.T) {
		env := map[string]interface{}{"count": 5}
		result, err := e.Evaluate("count * 2", env)
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result != 10 {
			t.Errorf("result = %v, want 10", result)
		}
	})

	t.Run("undefined variables evaluate to nil", func(t *testing.T) {
		result, err := e.Evaluate("missing", map[string]interface{}{})
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if result != nil {
			t.Errorf("result = %v, want nil", result)
		}
	})

	t.Run("compile errors are reported", func(t *testing.T) {
		if _, err := e.Evaluate("count >>", map[string]interface{}{"count": 1}); err == nil {
			t.Fatal("expected compile error")
		}
	})

	t.Run("oversized expressions are rejected", func(t *testing.T) {
		long := strings.Repeat("1+", 4096) + "1"
		if _, err := e.Evaluate(long, nil); err == nil {
			t.Fatal("expected length error")
		}
	})

	t.Run("programs are cached", func(t *testing.T) {
		env := map[string]interface{}{"count": 1}
		if _, err := e.Evaluate("count + 1", env); err != nil {
			t.Fatalf("first evaluation failed: %v", err)
		}
		e.mu.RLock()
		_, cached := e.compiled["count + 1"]
		e.mu.RUnlock()
		if !cached {
			t.Error("expected the compiled program to be cached")
		}
	})
}

func TestEvaluateBool(t *testing.T) {
	e := NewExprEvaluator()

	cases := []struct {
		expression string
		env        map[string]interface{}
		want       bool
	}{
		{"count > 2", map[string]interface{}{"count": 3}, true},
		{"count > 2", map[string]interface{}{"count": 1}, false},
		{"value", map[string]interface{}{"value": 7}, true},
		{"value", map[string]interface{}{"value": 0}, false},
		{`name`, map[string]interface{}{"name": "x"}, true},
		{`name`, map[string]interface{}{"name": ""}, false},
		{"missing", map[string]interface{}{}, false},
	}
	for _, tc := range cases {
		got, err := e.EvaluateBool(tc.expression, tc.env)
		if err != nil {
			t.Errorf("EvaluateBool(%q) failed: %v", tc.expression, err)
			continue
		}
		if got != tc.want {
			t.Errorf("EvaluateBool(%q, %v) = %t, want %t", tc.expression, tc.env, got, tc.want)
		}
	}
}
