package entity

// RedactEvent implements the single pure redaction predicate required by
// spec §4.1/§9 to be shared between bundle assembly and query reads:
// content.data is dropped iff the event's access level exceeds the
// level the reader/bundle is entitled to. Applying it twice at the same
// level is idempotent.
func RedactEvent(e *Event, allowedAccessLevel int) *Event {
	if e.Content.IdData.AccessLevel <= allowedAccessLevel {
		return e
	}
	if !e.HasData() {
		return e
	}
	redacted := e.Clone()
	redacted.Content.Data = nil
	return redacted
}
