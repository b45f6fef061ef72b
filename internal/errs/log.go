package errs

// Log accumulates per-stage diagnostics in source order (spec §6.3, §9:
// "error accumulation vs short-circuiting"). Each stage inspects the
// entries it added to the shared Log (see Since) to decide whether it
// failed; later stages never interleave their entries with an earlier
// stage's.
type Log struct {
	entries []*Error
}

// NewLog returns an empty diagnostic log.
func NewLog() *Log {
	return &Log{}
}

// Add appends a diagnostic. Entries must be added in source order within a
// stage.
func (l *Log) Add(e *Error) {
	l.entries = append(l.entries, e)
}

// Addf is a convenience wrapper around Add(New(kind, format, a...)).
func (l *Log) Addf(kind Kind, format string, a ...interface{}) {
	l.Add(New(kind, format, a...))
}

// Entries returns every diagnostic accumulated so far, in order.
func (l *Log) Entries() []*Error {
	return l.entries
}

// Len returns the number of diagnostics accumulated so far.
func (l *Log) Len() int {
	return len(l.entries)
}

// Empty reports whether no diagnostics have been recorded.
func (l *Log) Empty() bool {
	return len(l.entries) == 0
}

// Since returns the diagnostics added after mark (the Log's Len() at some
// earlier point), letting a stage inspect only the entries it personally
// added.
func (l *Log) Since(mark int) []*Error {
	if mark >= len(l.entries) {
		return nil
	}
	return l.entries[mark:]
}

// FirstOfKind returns the first entry of the given kind, or nil if none.
func (l *Log) FirstOfKind(kind Kind) *Error {
	for _, e := range l.entries {
		if e.Kind == kind {
			return e
		}
	}
	return nil
}

// Reset clears the log, used when a Session is re-input (spec §3.2).
func (l *Log) Reset() {
	l.entries = nil
}
