package sim

import (
	"fmt"
	"time"
)

// ValueType is the type carried by a continuously-valued variable.
type ValueType int

const (
	Float64 ValueType = iota
	Int64
	Bool
	String
)

func (t ValueType) String() string {
	switch t {
	case Float64:
		return "float64"
	case Int64:
		return "int64"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return fmt.Sprintf("ValueType(%d)", int(t))
	}
}

// accepts reports whether v is a Go value of this type.
func (t ValueType) accepts(v any) bool {
	switch v.(type) {
	case float64:
		return t == Float64
	case int64:
		return t == Int64
	case bool:
		return t == Bool
	case string:
		return t == String
	}
	return false
}

// Direction says whether a variable is produced (exported) or consumed
// (imported) by its owning model.
type Direction int

const (
	Exported Direction = iota
	Imported
)

func (d Direction) String() string {
	if d == Imported {
		return "imported"
	}
	return "exported"
}

// Variable is a continuously-valued output or input of an atomic model.
// The value is piecewise constant between writes.
type Variable struct {
	name      string
	valueType ValueType
	owner     string
	direction Direction

	value   any
	setAt   time.Duration
	set     bool
	version uint64 // incremented on every write
}

// Name returns the variable name, unique within its owning model.
func (v *Variable) Name() string { return v.name }

// Type returns the value type.
func (v *Variable) Type() ValueType { return v.valueType }

// Owner returns the URI of the owning model.
func (v *Variable) Owner() string { return v.owner }

// Direction returns whether the variable is exported or imported.
func (v *Variable) Direction() Direction { return v.direction }

// IsSet reports whether the variable has ever been written.
func (v *Variable) IsSet() bool { return v.set }

// SetAt returns the simulated instant of the last write.
func (v *Variable) SetAt() time.Duration { return v.setAt }

// Set writes value at instant t. A value of the wrong type is a precondition violation.
func (v *Variable) Set(value any, t time.Duration) {
	if !v.valueType.accepts(value) {
		panic(&PreconditionViolation{Model: v.owner, Message: fmt.Sprintf("variable %s is %s, got %T", v.name, v.valueType, value)})
	}
	v.value = value
	v.setAt = t
	v.set = true
	v.version++
}

// Value returns the current value. Reading a variable that was never written
// is undefined and panics.
func (v *Variable) Value() any {
	if !v.set {
		panic(&PreconditionViolation{Model: v.owner, Message: fmt.Sprintf("%s variable %s read before any write", v.direction, v.name)})
	}
	return v.value
}

// Float returns the current value of a Float64 variable.
func (v *Variable) Float() float64 {
	f, ok := v.Value().(float64)
	if !ok {
		panic(&PreconditionViolation{Model: v.owner, Message: fmt.Sprintf("variable %s is %s, not float64", v.name, v.valueType)})
	}
	return f
}

// Bool returns the current value of a Bool variable.
func (v *Variable) Bool() bool {
	b, ok := v.Value().(bool)
	if !ok {
		panic(&PreconditionViolation{Model: v.owner, Message: fmt.Sprintf("variable %s is %s, not bool", v.name, v.valueType)})
	}
	return b
}

// copyFrom propagates src's value and write instant into v.
func (v *Variable) copyFrom(src *Variable) {
	v.value = src.value
	v.setAt = src.setAt
	v.set = src.set
	v.version++
}
