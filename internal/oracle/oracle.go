// Package oracle classifies a raw response into the boolean (or string)
// verdict the extraction engine bisects on. Response is the
// transport-agnostic envelope; Trigger is the predicate that turns one
// into a definite true/false.
package oracle

import (
	"net/http"
	"regexp"
	"time"
)

// Response is the transport-agnostic envelope an oracle call produces.
// Status is -1 when not applicable (e.g. a Cmd injector with no exit
// status yet, or a transport that never surfaces one). Duration is zero
// when the transport does not measure timing; it is populated by HTTP
// injectors and consumed by DurationTrigger for time-based oracles.
type Response struct {
	Status   int
	Body     []byte
	Duration time.Duration
}

// BodyString returns the response body as a string.
func (r *Response) BodyString() string { return string(r.Body) }

// HTTPResponse extends Response with header lookup, for triggers and
// injectors that need to inspect response headers (e.g. a header-based
// error signal).
type HTTPResponse struct {
	Response
	Headers http.Header
}

// Header returns the first value of the named header, or "" if absent.
func (r *HTTPResponse) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Mode selects how a Trigger's raw match result is interpreted.
type Mode int

const (
	// Success means Match==true is interpreted as the tested condition
	// being true, with no inversion.
	Success Mode = iota
	// Error means Match==true signals "an error was observed", which in
	// bisection semantics means the tested condition was FALSE --
	// process_response must invert it.
	Error
	// Unknown disables interpretation; callers treat the raw bool as a
	// best-effort signal without inversion semantics.
	Unknown
)

// Trigger classifies an oracle Response as true or false. Triggers never
// fail: Match always produces a definite bool.
type Trigger struct {
	Mode  Mode
	Match func(*Response) bool
}

// Evaluate runs the trigger and applies ERROR-mode inversion, matching
// the distilled spec's process_response policy: in ERROR mode, a raw
// match (an error was observed) means the tested condition was false.
func (t *Trigger) Evaluate(resp *Response) bool {
	raw := t.Match(resp)
	if t.Mode == Error {
		return !raw
	}
	return raw
}

// NewStatusTrigger returns a Trigger whose Match compares the response
// status code against expected.
func NewStatusTrigger(mode Mode, expected int) *Trigger {
	return &Trigger{
		Mode: mode,
		Match: func(r *Response) bool {
			return r.Status == expected
		},
	}
}

// defaultErrorPatterns are the default HTTP error signature: six generic
// keywords, with no DBMS-specific error patterns.
var defaultErrorPatterns = []string{
	`error`, `unknown`, `illegal`, `warning`, `denied`, `subquery`,
}

// NewRegexpTrigger returns a Trigger whose Match performs a
// case-insensitive, multiline search of the response body against every
// pattern, true if any matches.
func NewRegexpTrigger(mode Mode, patterns []*regexp.Regexp) *Trigger {
	return &Trigger{
		Mode: mode,
		Match: func(r *Response) bool {
			body := r.BodyString()
			for _, p := range patterns {
				if p.MatchString(body) {
					return true
				}
			}
			return false
		},
	}
}

// DefaultHTTPErrorTrigger returns the default HTTP injector trigger: an
// ERROR-mode RegexpTrigger over defaultErrorPatterns.
func DefaultHTTPErrorTrigger() *Trigger {
	patterns := make([]*regexp.Regexp, 0, len(defaultErrorPatterns))
	for _, p := range defaultErrorPatterns {
		patterns = append(patterns, regexp.MustCompile(`(?is)`+p))
	}
	return NewRegexpTrigger(Error, patterns)
}

// SimilarityFunc compares a candidate response body against a baseline
// and returns a similarity ratio in [0,1].
type SimilarityFunc func(baseline, candidate []byte) float64

// NewSimilarityTrigger returns a SUCCESS-mode Trigger that compares each
// response against baseline using ratio, matching when the similarity is
// >= threshold. Useful when the target has no distinguishable error
// message and only a page-content difference signals the false branch.
func NewSimilarityTrigger(baseline []byte, threshold float64, ratio SimilarityFunc) *Trigger {
	return &Trigger{
		Mode: Success,
		Match: func(r *Response) bool {
			return ratio(baseline, r.Body) >= threshold
		},
	}
}

// NewDurationTrigger returns a SUCCESS-mode Trigger for time-based blind
// oracles: Match is true when the response's measured Duration meets or
// exceeds threshold (e.g. a conditional SLEEP(n) payload was honored).
func NewDurationTrigger(threshold time.Duration) *Trigger {
	return &Trigger{
		Mode: Success,
		Match: func(r *Response) bool {
			return r.Duration >= threshold
		},
	}
}
