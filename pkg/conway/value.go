package conway

import (
	"encoding/json"
	"strconv"
)

// Kind identifies which variant a Value is.
type Kind int

const (
	NothingKind Kind = iota
	NilKind
	StrKind
	IntKind
	BooleanKind
)

func (k Kind) String() string {
	switch k {
	case NilKind:
		return "Nil"
	case StrKind:
		return "Str"
	case IntKind:
		return "Int"
	case BooleanKind:
		return "Boolean"
	default:
		return "Nothing"
	}
}

// Value represents a runtime value in the Conway language. All variants are
// comparable, so two values are equal when == says so.
type Value interface {
	Kind() Kind
	String() string
}

type StrValue struct {
	Val string
}

func (s StrValue) Kind() Kind     { return StrKind }
func (s StrValue) String() string { return s.Val }

func (s StrValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Val)
}

type IntValue struct {
	Val int32
}

func (i IntValue) Kind() Kind     { return IntKind }
func (i IntValue) String() string { return strconv.FormatInt(int64(i.Val), 10) }

func (i IntValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Val)
}

type BoolValue struct {
	Val bool
}

func (b BoolValue) Kind() Kind     { return BooleanKind }
func (b BoolValue) String() string { return strconv.FormatBool(b.Val) }

func (b BoolValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Val)
}

// NilValue is the value of a declared variable that has not been assigned.
type NilValue struct{}

func (NilValue) Kind() Kind     { return NilKind }
func (NilValue) String() string { return "Nil" }

func (NilValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// NothingValue is returned when a name is not bound in any scope. It is
// distinct from NilValue.
type NothingValue struct{}

func (NothingValue) Kind() Kind     { return NothingKind }
func (NothingValue) String() string { return "Nothing" }

func (NothingValue) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Equal reports whether two values are the same variant holding the same
// data. A nil interface is treated as Nothing.
func Equal(a, b Value) bool {
	if a == nil {
		a = NothingValue{}
	}
	if b == nil {
		b = NothingValue{}
	}
	return a == b
}

// Operator is a unary operator.
type Operator int

const (
	Plus Operator = iota
	Minus
	Bang
)

func (op Operator) String() string {
	switch op {
	case Plus:
		return "+"
	case Minus:
		return "-"
	case Bang:
		return "!"
	default:
		return "Operator(" + strconv.Itoa(int(op)) + ")"
	}
}

// Apply applies the operator to a value. Minus is only defined for Int and
// Bang only for Boolean; anything else is a *TypeError. Negation wraps at the
// int32 bounds.
func (op Operator) Apply(val Value) (Value, error) {
	switch op {
	case Plus:
		return val, nil
	case Minus:
		if i, ok := val.(IntValue); ok {
			return IntValue{Val: -i.Val}, nil
		}
	case Bang:
		if b, ok := val.(BoolValue); ok {
			return BoolValue{Val: !b.Val}, nil
		}
	}
	return nil, &TypeError{Op: op, Value: val}
}

// operatorFor maps a token to its operator.
func operatorFor(kind TokenKind) (Operator, bool) {
	switch kind {
	case PLUS:
		return Plus, true
	case MINUS:
		return Minus, true
	case BANG:
		return Bang, true
	default:
		return 0, false
	}
}
