package facade

import (
	"fmt"
	"strings"
)

// State is the operating state of a facade device.
// Values follow the Tango DevState enumeration.
type State int

// Device states.
const (
	StateOn State = iota
	StateOff
	StateClose
	StateOpen
	StateInsert
	StateExtract
	StateMoving
	StateStandby
	StateFault
	StateInit
	StateRunning
	StateAlarm
	StateDisable
	StateUnknown
)

var stateNames = [...]string{
	StateOn:      "ON",
	StateOff:     "OFF",
	StateClose:   "CLOSE",
	StateOpen:    "OPEN",
	StateInsert:  "INSERT",
	StateExtract: "EXTRACT",
	StateMoving:  "MOVING",
	StateStandby: "STANDBY",
	StateFault:   "FAULT",
	StateInit:    "INIT",
	StateRunning: "RUNNING",
	StateAlarm:   "ALARM",
	StateDisable: "DISABLE",
	StateUnknown: "UNKNOWN",
}

// IsKnown reports whether s is a defined state.
func (s State) IsKnown() bool {
	return s >= 0 && int(s) < len(stateNames)
}

// String returns the upper-case state name.
func (s State) String() string {
	if !s.IsKnown() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state name, case-insensitively.
func ParseState(name string) (State, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == upper {
			return State(i), nil
		}
	}
	return StateUnknown, fmt.Errorf("%w: %q", ErrInvalidState, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsKnown() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidState, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// StateStatus is a state paired with a status message. A state rule may
// return it to set both at once.
type StateStatus struct {
	State  State
	Status string
}

// toState interprets v as a state.
func toState(v any) (State, error) {
	switch s := v.(type) {
	case State:
		if s.IsKnown() {
			return s, nil
		}
	case string:
		return ParseState(s)
	case int:
		if State(s).IsKnown() {
			return State(s), nil
		}
	case int64:
		if State(s).IsKnown() {
			return State(s), nil
		}
	case float64:
		if s == float64(int(s)) && State(int(s)).IsKnown() {
			return State(int(s)), nil
		}
	}
	return StateUnknown, fmt.Errorf("%w: %v (%T)", ErrInvalidState, v, v)
}

// splitStateStatus unpacks a state rule result into a state and a status.
// A bare state gets a generic status message.
func splitStateStatus(v any) (State, string, error) {
	var (
		raw    any
		status string
		paired bool
	)
	switch p := v.(type) {
	case StateStatus:
		raw, status, paired = p.State, p.Status, true
	case []any:
		if len(p) == 2 {
			s, ok := p[1].(string)
			if !ok {
				return StateUnknown, "", fmt.Errorf("%w: status %v is not a string", ErrInvalidState, p[1])
			}
			raw, status, paired = p[0], s, true
		}
	case [2]any:
		s, ok := p[1].(string)
		if !ok {
			return StateUnknown, "", fmt.Errorf("%w: status %v is not a string", ErrInvalidState, p[1])
		}
		raw, status, paired = p[0], s, true
	}
	if !paired {
		raw = v
	}
	state, err := toState(raw)
	if err != nil {
		return StateUnknown, "", err
	}
	if !paired {
		status = fmt.Sprintf("The device is in %s state.", state)
	}
	return state, status, nil
}
