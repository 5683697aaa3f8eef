// Package role assigns master or slave roles to acquisitions. The policy is
// supplied by the caller's workflow; the engine only applies it.
package role

import (
	"time"

	"github.com/robert-malhotra/ifg-pair-selector/internal/acquisition"
)

// Role of an acquisition within a candidate pair.
type Role int

const (
	Master Role = iota
	Slave
)

func (r Role) String() string {
	if r == Slave {
		return "slave"
	}
	return "master"
}

// Assigner decides the role of one acquisition.
type Assigner interface {
	Assign(a acquisition.Acquisition) Role
}

// Func adapts a plain function to Assigner.
type Func func(a acquisition.Acquisition) Role

// Assign calls f.
func (f Func) Assign(a acquisition.Acquisition) Role {
	return f(a)
}

// Fixed gives every acquisition the same role.
type Fixed Role

// Assign returns the fixed role.
func (f Fixed) Assign(acquisition.Acquisition) Role {
	return Role(f)
}

// SplitAt makes acquisitions starting at or after the reference instant
// masters and earlier ones slaves, as in a rolling window anchored on the
// newest pass.
type SplitAt time.Time

// Assign compares the start time against the reference.
func (s SplitAt) Assign(a acquisition.Acquisition) Role {
	if a.StartTime.Before(time.Time(s)) {
		return Slave
	}
	return Master
}

// ByIDs makes the listed acquisitions masters and the rest slaves.
type ByIDs map[string]struct{}

// NewByIDs builds a ByIDs set.
func NewByIDs(masterIDs ...string) ByIDs {
	set := make(ByIDs, len(masterIDs))
	for _, id := range masterIDs {
		set[id] = struct{}{}
	}
	return set
}

// Assign looks the id up in the master set.
func (b ByIDs) Assign(a acquisition.Acquisition) Role {
	if _, ok := b[a.ID]; ok {
		return Master
	}
	return Slave
}

// Partition splits acquisitions by role, preserving order within each role.
func Partition(assigner Assigner, acqs []acquisition.Acquisition) (master, slave []acquisition.Acquisition) {
	for _, a := range acqs {
		if assigner.Assign(a) == Slave {
			slave = append(slave, a)
		} else {
			master = append(master, a)
		}
	}
	return master, slave
}
