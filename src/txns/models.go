package txns

type TaggedType[T any] struct{ v T } // this trick forbids casting other values to a lock mode

type PageLockMode TaggedType[uint8]

var (
	PageLockShared    = PageLockMode{0}
	PageLockExclusive = PageLockMode{1}
)

func (m PageLockMode) String() string {
	switch m {
	case PageLockShared:
		return "SHARED"
	case PageLockExclusive:
		return "EXCLUSIVE"
	}
	return "UNKNOWN"
}

// Compatible reports whether two different transactions may hold m and other
// on the same page at the same time.
func (m PageLockMode) Compatible(other PageLockMode) bool {
	return m == PageLockShared && other == PageLockShared
}

// WeakerOrEqual reports whether holding other already grants m.
func (m PageLockMode) WeakerOrEqual(other PageLockMode) bool {
	return m == PageLockShared || other == PageLockExclusive
}
