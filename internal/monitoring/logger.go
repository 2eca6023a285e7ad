// Package monitoring holds the replaceable logger shared by the telemetry and
// storage layers.
package monitoring

import "log"

// Logf defaults to log.Printf. Replace it with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces Logf. nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
