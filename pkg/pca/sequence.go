package pca

import (
	"bytes"
	"time"
)

// SequenceSize is the width of a disclosure sequence value.
const SequenceSize = 7

// Sequence orders disclosures for auditing:
// year ‖ month ‖ day ‖ hour ‖ minute ‖ second (BCD, UTC) ‖ counter.
type Sequence [SequenceSize]byte

func bcd(v int) byte {
	return byte((v/10)%10<<4 | v%10)
}

// sequenceAt returns the first sequence value of the second containing t.
func sequenceAt(t time.Time) Sequence {
	t = t.UTC()
	return Sequence{
		bcd(t.Year() % 100),
		bcd(int(t.Month())),
		bcd(t.Day()),
		bcd(t.Hour()),
		bcd(t.Minute()),
		bcd(t.Second()),
		0x00,
	}
}

// Next returns the sequence value following last at time now. Values strictly
// increase even if the clock stalls or goes backwards.
func Next(last Sequence, now time.Time) Sequence {
	candidate := sequenceAt(now)
	if bytes.Compare(candidate[:], last[:]) > 0 {
		return candidate
	}
	next := last
	for i := SequenceSize - 1; i >= 0; i-- {
		next[i]++
		if next[i] != 0 {
			break
		}
	}
	return next
}
