// Package config loads the ambient "loop profile" — thread count, the
// smart-waiter toggle, and predictor alpha overrides — from a single HCL
// block. It follows the teacher's own parse-then-decode shape
// (internal/model/grid.go's hclparse.Parser plus gohcl.DecodeBody), scaled
// down from a whole multi-block execution graph to one small profile
// block. The scheduler core never imports this package; only the demo
// cmd does.
package config
