// SPDX-License-Identifier: GPL-3.0-or-later

package confopt

import (
	"fmt"
	"strings"
)

// FlexBool is a bool that also accepts yes/no, on/off, y/n, t/f and 0/1 in config files.
type FlexBool bool

func (b *FlexBool) UnmarshalYAML(unmarshal func(any) error) error {
	var raw any
	if err := unmarshal(&raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case bool:
		*b = FlexBool(v)
		return nil
	case int:
		return b.set(fmt.Sprint(v))
	case string:
		return b.set(v)
	default:
		return fmt.Errorf("cannot parse %v (%T) as bool", raw, raw)
	}
}

func (b *FlexBool) set(s string) error {
	s = strings.Trim(strings.TrimSpace(s), `"'`)

	switch strings.ToLower(s) {
	case "true", "yes", "y", "on", "t", "1":
		*b = true
	case "false", "no", "n", "off", "f", "0":
		*b = false
	default:
		return fmt.Errorf("cannot parse '%s' as bool", s)
	}
	return nil
}

func (b FlexBool) MarshalYAML() (any, error) {
	return bool(b), nil
}
