package examplemodules

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vk/workloop/internal/module"
)

// ReportSnapshot is what ReportModule encodes and writes once per run.
type ReportSnapshot struct {
	Name                string  `msgpack:"name"`
	PredictedHigherSecs float64 `msgpack:"predicted_higher_secs"`
	PredictedLowerSecs  float64 `msgpack:"predicted_lower_secs"`
}

// NewReportModule builds an Exclusive module that msgpack-encodes the
// observed TimespanPredictor bands of each watched module and writes the
// result to w once per run — giving the msgpack codec (present only
// transitively in the teacher's go.mod, via the socket.io stack) a direct
// home as a standalone reporting module.
func NewReportModule(name string, w io.Writer, watched []*module.Module, opts ...module.Option) *module.Module {
	onRun := func(ctx context.Context) error {
		snapshots := make([]ReportSnapshot, 0, len(watched))
		for _, mod := range watched {
			snapshots = append(snapshots, ReportSnapshot{
				Name:                mod.Name,
				PredictedHigherSecs: mod.PredictHigherExecutionTime(),
				PredictedLowerSecs:  mod.PredictLowerExecutionTime(),
			})
		}
		encoded, err := msgpack.Marshal(snapshots)
		if err != nil {
			return fmt.Errorf("report module %s: encode: %w", name, err)
		}
		if _, err := w.Write(encoded); err != nil {
			return fmt.Errorf("report module %s: write: %w", name, err)
		}
		return nil
	}
	return module.New(name, module.Exclusive, onRun, opts...)
}
