package report

// Polarity is the direction of a stance. Values match the persisted codes.
type Polarity int

const (
	Approve Polarity = 1
	Deny    Polarity = -1
)

func (p Polarity) String() string {
	switch p {
	case Approve:
		return "approve"
	case Deny:
		return "deny"
	default:
		return "none"
	}
}

// Stance is one reviewer's vote on a report.
type Stance struct {
	Reviewer string
	Polarity Polarity
	Text     string
}

// Ledger holds at most one stance per reviewer. Order is insertion order,
// which is also display order within each polarity.
type Ledger struct {
	stances []Stance
}

// Submit records a stance for s.Reviewer, removing any earlier one first.
// It returns the polarity of the removed stance, if there was one.
func (l *Ledger) Submit(s Stance) (previous Polarity, replaced bool) {
	if i := l.index(s.Reviewer); i >= 0 {
		previous = l.stances[i].Polarity
		replaced = true
		l.remove(i)
	}
	l.stances = append(l.stances, s)
	return previous, replaced
}

// Revoke removes the reviewer's stance and reports whether one existed.
func (l *Ledger) Revoke(reviewer string) bool {
	i := l.index(reviewer)
	if i < 0 {
		return false
	}
	l.remove(i)
	return true
}

// Get returns the reviewer's current stance.
func (l *Ledger) Get(reviewer string) (Stance, bool) {
	if i := l.index(reviewer); i >= 0 {
		return l.stances[i], true
	}
	return Stance{}, false
}

// Count returns the number of stances with polarity p.
func (l *Ledger) Count(p Polarity) int {
	n := 0
	for _, s := range l.stances {
		if s.Polarity == p {
			n++
		}
	}
	return n
}

// Bucket returns a copy of the stances with polarity p, oldest first.
func (l *Ledger) Bucket(p Polarity) []Stance {
	var out []Stance
	for _, s := range l.stances {
		if s.Polarity == p {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the total number of stances.
func (l *Ledger) Len() int { return len(l.stances) }

func (l *Ledger) clone() Ledger {
	if l.stances == nil {
		return Ledger{}
	}
	return Ledger{stances: append([]Stance(nil), l.stances...)}
}

func (l *Ledger) index(reviewer string) int {
	for i, s := range l.stances {
		if s.Reviewer == reviewer {
			return i
		}
	}
	return -1
}

func (l *Ledger) remove(i int) {
	l.stances = append(l.stances[:i], l.stances[i+1:]...)
}
