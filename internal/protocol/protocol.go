// Package protocol implements the line-framed "@@"-prefixed control
// protocol between a worker and the coordinator (spec.md §4.1).
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Marker is the two-byte sequence that starts a protocol record within a
// frame.
const Marker = "@@"

// MaxLineBytes is the frame size at which an oversize line is truncated and
// parsed as if the limit were the newline (spec.md §4.1, §4.7).
const MaxLineBytes = 8 * 1024

// Kind enumerates the known record kinds. KindUnknown marks opaque frames
// (no "@@" marker). An unrecognized "@@NAME:" record decodes to Kind(NAME)
// and is dropped by callers, per the forward compatibility rule.
type Kind string

const (
	KindReady        Kind = "READY"
	KindSolving      Kind = "SOLVING"
	KindFinished     Kind = "FINISHED"
	KindPartial      Kind = "PARTIAL"
	KindProblemStart Kind = "PROBLEM_START"
	KindProblemEnd   Kind = "PROBLEM_END"
	KindSolutionStrt Kind = "SOLUTION_START"
	KindSolutionEnd  Kind = "SOLUTION_END"
	KindText         Kind = "TEXT"
	KindTime         Kind = "TIME"
	KindHeartbeat    Kind = "HEARTBEAT"
	KindProgress     Kind = "PROGRESS"
	KindCombo        Kind = "COMBO"
	KindDebug        Kind = "DEBUG"
	KindError        Kind = "ERROR"
	KindUnknown      Kind = ""
)

// Record is a decoded "@@" protocol record, or the opaque raw frame it was
// parsed from if it carries no marker.
type Record struct {
	// Kind is KindUnknown for opaque (non-"@@") frames.
	Kind Kind
	// Body is the rest-of-line payload after "@@KIND:", unparsed.
	Body string
	// Opaque is the raw frame text, set only when Kind == KindUnknown and
	// the frame genuinely has no "@@" marker anywhere in it.
	Opaque string
	// Truncated reports whether this record came from a frame that hit
	// MaxLineBytes before a newline was seen.
	Truncated bool
}

// Progress is the parsed payload of a PROGRESS record.
type Progress struct {
	M, K      int
	Positions uint64
}

// ParseProgress parses "m+k:positions".
func ParseProgress(body string) (Progress, error) {
	mk, posStr, ok := strings.Cut(body, ":")
	if !ok {
		return Progress{}, fmt.Errorf("protocol: malformed PROGRESS body %q", body)
	}
	mStr, kStr, ok := strings.Cut(mk, "+")
	if !ok {
		return Progress{}, fmt.Errorf("protocol: malformed PROGRESS body %q", body)
	}
	m, err := strconv.Atoi(mStr)
	if err != nil || m < 0 {
		return Progress{}, fmt.Errorf("protocol: bad m in PROGRESS body %q", body)
	}
	k, err := strconv.Atoi(kStr)
	if err != nil || k < 0 {
		return Progress{}, fmt.Errorf("protocol: bad k in PROGRESS body %q", body)
	}
	positions, err := strconv.ParseUint(posStr, 10, 64)
	if err != nil {
		return Progress{}, fmt.Errorf("protocol: bad positions in PROGRESS body %q", body)
	}
	return Progress{M: m, K: k, Positions: positions}, nil
}

// Depth encodes (m, k) per spec.md §3: last_depth = m*100 + k.
func Depth(m, k int) int { return m*100 + k }

// ParseRecord parses one frame (newline-stripped, CR stripped) into a
// Record. The decoder tolerates leading noise before "@@" — it scans for the
// marker rather than requiring it at offset 0.
func ParseRecord(frame string) Record {
	idx := strings.Index(frame, Marker)
	if idx < 0 {
		return Record{Kind: KindUnknown, Opaque: frame}
	}
	rest := frame[idx+len(Marker):]
	name, body, hasColon := strings.Cut(rest, ":")
	if !hasColon {
		// No colon: the whole remainder is the kind name (e.g. READY).
		return Record{Kind: Kind(name), Body: ""}
	}
	return Record{Kind: Kind(name), Body: body}
}

// Encode renders a "@@KIND" or "@@KIND:body" line, without the trailing
// newline.
func Encode(kind Kind, body string) string {
	if body == "" {
		return Marker + string(kind)
	}
	return Marker + string(kind) + ":" + body
}
