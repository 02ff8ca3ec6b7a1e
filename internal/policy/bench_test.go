package policy

import (
	"fmt"
	"testing"

	"github.com/rkorstad/taintgate/internal/taint"
)

func BenchmarkEvaluate_NoContext(b *testing.B) {
	spec := taint.RoleSpec{"cmd": taint.ControlRole()}
	params := map[string]any{"cmd": "echo hello"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(spec, params, nil, DefaultPredicate)
	}
}

func BenchmarkEvaluate_ControlPass(b *testing.B) {
	spec := taint.RoleSpec{"cmd": taint.ControlRole(), "cwd": taint.ControlRole()}
	params := map[string]any{"cmd": "echo hello", "cwd": "/tmp", "note": "x"}
	ctx := taint.Bare(taint.LevelTrusted)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(spec, params, &ctx, DefaultPredicate)
	}
}

func BenchmarkEvaluate_SanitizationCheck(b *testing.B) {
	r := taint.NewRegistry()
	req, _ := r.SetOf(taint.TagPathTraversal, taint.TagShellMeta)
	spec := taint.RoleSpec{"cmd": taint.ControlRequiring(req)}
	params := map[string]any{"cmd": "echo hello"}
	ctx := taint.Structured(taint.LevelDerived, req)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(spec, params, &ctx, DefaultPredicate)
	}
}

func BenchmarkEvaluate_WideParameterMap(b *testing.B) {
	spec := make(taint.RoleSpec, 50)
	params := make(map[string]any, 50)
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("param_%02d", i)
		spec[name] = taint.ControlRole()
		params[name] = "value"
	}
	ctx := taint.Bare(taint.LevelDerived)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(spec, params, &ctx, DefaultPredicate)
	}
}
