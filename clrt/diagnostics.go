package clrt

import (
	"k8s.io/klog/v2"
)

// Severity of a diagnostic message.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

// String implements fmt.Stringer.
func (s Severity) String() string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// Diagnostics receives build logs, degraded kernel enumeration warnings and asynchronous context errors.
// It may be called concurrently.
type Diagnostics interface {
	Report(severity Severity, message string)
}

// DiagnosticsFunc adapts a function to the Diagnostics interface.
type DiagnosticsFunc func(severity Severity, message string)

// Report implements Diagnostics.
func (fn DiagnosticsFunc) Report(severity Severity, message string) {
	fn(severity, message)
}

// KlogDiagnostics reports to klog. It is the default.
var KlogDiagnostics Diagnostics = DiagnosticsFunc(func(severity Severity, message string) {
	if severity == SeverityError {
		klog.ErrorDepth(2, message)
		return
	}
	klog.WarningDepth(2, message)
})
