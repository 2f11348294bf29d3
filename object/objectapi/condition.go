package objectapi

// Condition is a single column predicate. The set is intentionally narrow: the
// provider layer only ever needs equality, exclusion and ordering on key
// columns. Anything richer belongs to the store implementation, not here.
type Condition struct {
	Column string
	Op     ConditionOp
	Value  any
}

type ConditionOp int

const (
	OpEqual ConditionOp = iota
	OpNotEqual
)

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEqual, Value: value}
}

func Neq(column string, value any) Condition {
	return Condition{Column: column, Op: OpNotEqual, Value: value}
}

// Order describes a single ordering term for single-row disambiguation.
type Order struct {
	Column string
	Desc   bool
}
