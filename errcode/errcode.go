// Package errcode carries stable, bus-facing error identifiers for the
// pump controller, the way higher layers want a short machine-readable
// code rather than a free-form message.
package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Link-layer codes.
const (
	OK        Code = "ok"
	Busy      Code = "busy"
	Param     Code = "param"
	Timeout   Code = "timeout"
	Crc       Code = "crc"
	Format    Code = "format"
	Transport Code = "transport"
)

// Manager-layer codes.
const (
	PumpNotFound Code = "pump_not_found"
	AdapterBusy  Code = "adapter_busy"
)

// FSM-layer codes.
const (
	IllegalState Code = "illegal_state"
)

// Generic fallback for errors that didn't originate in this taxonomy.
const Error Code = "error"

// E wraps a Code with operation context and an optional cause, for cases
// where a bare Code loses useful detail (which pump, which operation).
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + string(e.C) + ": " + e.Msg
	}
	return e.Op + ": " + string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
