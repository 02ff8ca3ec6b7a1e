package audit

// Fanout combines sinks into one. Nil entries are skipped; with no
// usable sink it returns nil, which the emitter treats as discard.
func Fanout(sinks ...Sink) Sink {
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return fanout(kept)
}

type fanout []Sink

// Record delivers to every sink. Each sink is attempted even after a
// failure; the first error is reported.
func (f fanout) Record(ev Event) error {
	var first error
	for _, s := range f {
		if err := s.Record(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
