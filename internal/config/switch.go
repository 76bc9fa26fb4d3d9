package config

import (
	"fmt"
	"strings"
)

// Switch is an on/off setting that may be left to the platform default.
type Switch int8

const (
	Off     Switch = 0
	On      Switch = 1
	Inherit Switch = -1
)

// ParseSwitch reads on|1|t|true|y|yes|enabled and off|0|f|false|n|no|disabled
// in any case. Anything else inherits.
func ParseSwitch(s string) Switch {
	switch fold.String(strings.TrimSpace(s)) {
	case "on", "1", "t", "true", "y", "yes", "enabled":
		return On
	case "off", "0", "f", "false", "n", "no", "disabled":
		return Off
	}
	return Inherit
}

// Resolve returns the switch as a bool, or def when inherited.
func (s Switch) Resolve(def bool) bool {
	switch s {
	case On:
		return true
	case Off:
		return false
	}
	return def
}

func (s Switch) String() string {
	switch s {
	case On:
		return "on"
	case Off:
		return "off"
	}
	return "inherit"
}

// UnmarshalTOML accepts booleans, the integers 0 and 1, and switch strings.
func (s *Switch) UnmarshalTOML(v any) error {
	switch v := v.(type) {
	case bool:
		*s = Off
		if v {
			*s = On
		}
	case int64:
		*s = ParseSwitch(fmt.Sprint(v))
	case string:
		*s = ParseSwitch(v)
	default:
		return fmt.Errorf("switch value %v has unsupported type %T", v, v)
	}
	return nil
}

func (s Switch) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
