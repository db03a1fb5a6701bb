package pipeline

import "fmt"

// DataFetchError means no usable price data could be obtained. It aborts
// the run.
type DataFetchError struct {
	Ticker string
	Err    error
}

func (e *DataFetchError) Error() string {
	return fmt.Sprintf("failed to fetch prices for %s: %v", e.Ticker, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// TransformError means the Box-Cox lambda could not be estimated, usually
// because the series contains non-positive values. Only the transformed
// model family is dropped; the run continues.
type TransformError struct {
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("failed to estimate variance stabilizing transform: %v", e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// ConvergenceError means one model failed to fit. The model is dropped
// from every downstream stage.
type ConvergenceError struct {
	Model string
	Err   error
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("model %s failed to converge: %v", e.Model, e.Err)
}

func (e *ConvergenceError) Unwrap() error { return e.Err }

// DiagnosticError means residual diagnostics could not be computed for
// one model. Its metrics are reported as missing.
type DiagnosticError struct {
	Model string
	Err   error
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("diagnostics for %s could not be computed: %v", e.Model, e.Err)
}

func (e *DiagnosticError) Unwrap() error { return e.Err }
