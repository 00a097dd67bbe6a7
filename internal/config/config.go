package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoopProfile is the decoded contents of a `loop { ... }` HCL block: the
// smart-waiter toggle plus the worker pool size and predictor tuning,
// all exposed as ordinary Go fields rather than deferred-evaluation
// hcl.Expression fields, since a loop profile has no step graph to
// cross-reference — every value here is a literal, decoded once at
// startup.
type LoopProfile struct {
	ThreadCount        int     `hcl:"thread_count,optional"`
	SmartWaiter        bool    `hcl:"smart_waiter,optional"`
	PredictorFastAlpha float64 `hcl:"predictor_fast_alpha,optional"`
	PredictorSlowAlpha float64 `hcl:"predictor_slow_alpha,optional"`
}

// hclLoopBlock is the raw decode target for a `loop` block. Every field
// is a pointer so Load can tell "omitted" apart from "explicitly set to
// the zero value" and fall back to Default() accordingly.
type hclLoopBlock struct {
	ThreadCount        *int     `hcl:"thread_count,optional"`
	SmartWaiter        *bool    `hcl:"smart_waiter,optional"`
	PredictorFastAlpha *float64 `hcl:"predictor_fast_alpha,optional"`
	PredictorSlowAlpha *float64 `hcl:"predictor_slow_alpha,optional"`
}

// hclRoot is the top-level structure of a profile file for decoding,
// mirroring the teacher's hclGridFile wrapper struct.
type hclRoot struct {
	Profile *hclLoopBlock `hcl:"loop,block"`
}

// Default returns the profile used when no HCL file is supplied.
// ThreadCount defaults to 0, which loop.Run treats as "use
// runtime.NumCPU()" — matching the original library's
// Start(threads_count = 0) defaulting to the number of logical cores.
func Default() LoopProfile {
	return LoopProfile{
		ThreadCount:        0,
		SmartWaiter:        true,
		PredictorFastAlpha: 0.2,
		PredictorSlowAlpha: 0.05,
	}
}

// Load parses a single HCL file containing one `loop` block and returns
// the decoded profile, defaulting any fields the file omits (gohcl's
// "optional" tag leaves Go zero values in place, so an omitted
// thread_count or predictor_fast_alpha would otherwise decode as 0).
func Load(filePath string) (LoopProfile, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return LoopProfile{}, fmt.Errorf("config: failed to parse %s: %w", filePath, diags)
	}

	var root hclRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return LoopProfile{}, fmt.Errorf("config: failed to decode %s: %w", filePath, diags)
	}

	profile := Default()
	if b := root.Profile; b != nil {
		if b.ThreadCount != nil {
			profile.ThreadCount = *b.ThreadCount
		}
		if b.SmartWaiter != nil {
			profile.SmartWaiter = *b.SmartWaiter
		}
		if b.PredictorFastAlpha != nil {
			profile.PredictorFastAlpha = *b.PredictorFastAlpha
		}
		if b.PredictorSlowAlpha != nil {
			profile.PredictorSlowAlpha = *b.PredictorSlowAlpha
		}
	}
	return profile, nil
}
