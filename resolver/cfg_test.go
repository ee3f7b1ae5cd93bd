package resolver

import (
	"testing"
)

func TestEvalCfg(t *testing.T) {
	enabled := func(f string) bool { return f == "std" || f == "serde" }
	tests := []struct {
		expr string
		want bool
	}{
		{`feature = "std"`, true},
		{`feature = "objc"`, false},
		{`not(feature = "objc")`, true},
		{`all(feature = "std", feature = "serde")`, true},
		{`all(feature = "std", feature = "objc")`, false},
		{`any(feature = "objc", feature = "serde")`, true},
		{`any()`, false},
		{`all()`, true},
		{`target_os = "ios"`, true},
		{`test`, true},
		{`all(not(feature = "objc"), any(feature = "std",),)`, true},
	}
	for _, tt := range tests {
		got, err := EvalCfg(tt.expr, enabled)
		if err != nil {
			t.Errorf("EvalCfg(%q) error: %v", tt.expr, err)
			continue
		}
		if got != tt.want {
			t.Errorf("EvalCfg(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalCfg_Errors(t *testing.T) {
	enabled := func(string) bool { return false }
	for _, expr := range []string{
		``,
		`feature = std`,
		`feature = "std`,
		`not(feature = "a", feature = "b")`,
		`all(feature = "a"`,
		`feature = "a" extra`,
	} {
		if _, err := EvalCfg(expr, enabled); err == nil {
			t.Errorf("EvalCfg(%q): expected error", expr)
		}
	}
}
