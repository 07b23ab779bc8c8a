package telemetry

import (
	"fmt"
)

// API is an abstraction over logging/metrics so that tests can assert on what
// a component reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has failed in a way the operator
	// should look at.
	//
	// `id` names the component, not the specific line that broke. Use the
	// `<struct>.<method>` form, all lowercase, dashes between words
	// (ex. `session.authenticate`, `notified-cache.load`). Details such as
	// "the HTTP request failed" belong in the params or in a wrapped error.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that did not stop the run but may need
	// investigation, like a persisted file that could not be decoded.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports information that is only useful while debugging.
	ReportDebug(msg string, params ...any)

	// ReportCount reports a count observed at the current time, ex. the
	// number of bookable slots seen in a run.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id/message with a namespace, like a "sub" logger.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
