// Package seq assigns the database-wide sequence numbers that order every
// symbol and statement.
//
// The number space is cut into fixed-size intervals. Appending an object
// claims the start of a fresh interval; inserting an object between two
// existing ones claims a free slot inside an older interval, so nothing that
// was already numbered has to move. Slots handed out by insertion can be
// returned one at a time with Release or wholesale through a checkpoint
// rollback.
package seq

import (
	"fmt"
	"math"
	"slices"

	mmerrors "github.com/FocuswithJustin/mmdb/core/errors"
)

const (
	// DefaultIntervalSize is the number of slots per interval.
	DefaultIntervalSize = 1000

	// MaxSeq is the largest sequence number that may be handed out.
	MaxSeq = math.MaxInt32

	// NoInsert is returned by NextInsertSeq when the caller must append instead.
	NoInsert int64 = -1
)

type checkpointState int

const (
	idle checkpointState = iota
	checkpointed
)

// Assigner hands out sequence numbers. It is not safe for concurrent use.
type Assigner struct {
	intervalSize  int64
	objectCount   int64
	intervalsUsed int64

	// gaps holds the used-slot bitmap of every interval that received an
	// inserted object. Slot 0 is the interval's own anchor.
	gaps map[int64]*bitmap

	state        checkpointState
	savedCount   int64
	savedUsed    int64
	insertedSeqs []int64
}

// New returns an Assigner with the given interval size.
func New(intervalSize int) (*Assigner, error) {
	if intervalSize < 1 || intervalSize > MaxSeq/2 {
		return nil, mmerrors.NewValidation("interval_size",
			fmt.Sprintf("must be between 1 and %d, got %d", MaxSeq/2, intervalSize))
	}
	return &Assigner{
		intervalSize: int64(intervalSize),
		gaps:         make(map[int64]*bitmap),
	}, nil
}

// NewDefault returns an Assigner using DefaultIntervalSize.
func NewDefault() *Assigner {
	a, _ := New(DefaultIntervalSize)
	return a
}

// IntervalSize returns the configured interval size.
func (a *Assigner) IntervalSize() int64 { return a.intervalSize }

// ObjectCount returns the number of sequence numbers handed out.
func (a *Assigner) ObjectCount() int64 { return a.objectCount }

// IntervalsUsed returns the number of intervals claimed by appends.
func (a *Assigner) IntervalsUsed() int64 { return a.intervalsUsed }

// IntervalOf returns the interval a sequence number falls in.
func (a *Assigner) IntervalOf(s int64) int64 { return s / a.intervalSize }

// NextSeq claims the start of a brand-new interval.
func (a *Assigner) NextSeq() (int64, error) {
	next := (a.intervalsUsed + 1) * a.intervalSize
	if next > MaxSeq {
		return 0, mmerrors.Newf(mmerrors.ErrSequenceOverflow, "",
			"interval %d of size %d exceeds %d", a.intervalsUsed+1, a.intervalSize, int64(MaxSeq))
	}
	a.intervalsUsed++
	a.objectCount++
	return next, nil
}

// NextInsertSeq returns a free slot in the interval containing after, or
// NoInsert when the caller should append with NextSeq instead. The first
// interval is reserved and the newest interval is never split.
func (a *Assigner) NextInsertSeq(after int64) int64 {
	if after < 0 {
		return NoInsert
	}
	interval := a.IntervalOf(after)
	if interval == 0 || interval >= a.intervalsUsed {
		return NoInsert
	}

	gap, ok := a.gaps[interval]
	if !ok {
		gap = newBitmap(a.intervalSize)
		gap.set(0)
		a.gaps[interval] = gap
	}

	slot := gap.firstClear()
	if slot < 0 {
		return NoInsert
	}
	gap.set(slot)

	s := interval*a.intervalSize + slot
	a.objectCount++
	if a.state == checkpointed {
		a.insertedSeqs = append(a.insertedSeqs, s)
	}
	return s
}

// BeginCheckpoint snapshots the counters so a later Rollback can undo every
// number handed out in between.
func (a *Assigner) BeginCheckpoint() error {
	if a.state == checkpointed {
		return mmerrors.ErrCheckpointOpen
	}
	a.state = checkpointed
	a.savedCount = a.objectCount
	a.savedUsed = a.intervalsUsed
	a.insertedSeqs = a.insertedSeqs[:0]
	return nil
}

// Checkpointed reports whether a checkpoint is open.
func (a *Assigner) Checkpointed() bool { return a.state == checkpointed }

// Commit closes the open checkpoint, keeping everything handed out since.
func (a *Assigner) Commit() error {
	if a.state != checkpointed {
		return mmerrors.ErrNoCheckpoint
	}
	a.state = idle
	a.insertedSeqs = a.insertedSeqs[:0]
	return nil
}

// Rollback restores the counters saved by BeginCheckpoint and frees every
// inserted slot handed out since. Intervals appended since are discarded
// wholesale.
func (a *Assigner) Rollback() error {
	if a.state != checkpointed {
		return mmerrors.ErrNoCheckpoint
	}
	for _, s := range a.insertedSeqs {
		if gap, ok := a.gaps[a.IntervalOf(s)]; ok {
			gap.clear(s % a.intervalSize)
		}
	}
	for interval := range a.gaps {
		if interval >= a.savedUsed {
			delete(a.gaps, interval)
		}
	}
	a.objectCount = a.savedCount
	a.intervalsUsed = a.savedUsed
	a.insertedSeqs = a.insertedSeqs[:0]
	a.state = idle
	return nil
}

// Release hands back one number taken since the open checkpoint. An inserted
// slot is freed in place; an appended number only while its interval is
// still the newest and unsplit. It reports whether s was freed.
func (a *Assigner) Release(s int64) bool {
	if a.state != checkpointed {
		return false
	}
	if i := slices.Index(a.insertedSeqs, s); i >= 0 {
		a.gaps[a.IntervalOf(s)].clear(s % a.intervalSize)
		a.insertedSeqs = slices.Delete(a.insertedSeqs, i, i+1)
		a.objectCount--
		return true
	}
	if a.intervalsUsed <= a.savedUsed || s != a.intervalsUsed*a.intervalSize {
		return false
	}
	if gap, ok := a.gaps[a.intervalsUsed]; ok {
		if gap.count() > 1 {
			return false
		}
		delete(a.gaps, a.intervalsUsed)
	}
	a.intervalsUsed--
	a.objectCount--
	return true
}

// GapsUsed returns how many inserted slots are taken in an interval,
// excluding its anchor.
func (a *Assigner) GapsUsed(interval int64) int {
	gap, ok := a.gaps[interval]
	if !ok {
		return 0
	}
	return gap.count() - 1
}
