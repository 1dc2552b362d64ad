package exception

import "trade-recon-go/ledger"

// Recorder accumulates exception records in emission order. It is owned by a
// single run and is append-only.
type Recorder struct {
	records []Record
	counts  map[Kind]int
}

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[Kind]int)}
}

// Record appends one exception per row. Arguments are checked before anything
// is appended, so a failed call leaves the report untouched.
func (r *Recorder) Record(rows []ledger.Row, kind Kind, source, field string) error {
	if err := check(kind, field); err != nil {
		return err
	}
	batch := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := New(row, kind, source, field)
		if err != nil {
			return err
		}
		batch = append(batch, rec)
	}
	r.records = append(r.records, batch...)
	r.counts[kind] += len(batch)
	return nil
}

// Records returns a copy of the report so far.
func (r *Recorder) Records() []Record {
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Recorder) Len() int { return len(r.records) }

// Count returns how many records of kind were appended.
func (r *Recorder) Count(kind Kind) int { return r.counts[kind] }
