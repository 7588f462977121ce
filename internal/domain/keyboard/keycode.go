package keyboard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"
)

// ErrUnknownKeycode is returned for key names that have no KEY_* code.
var ErrUnknownKeycode = errors.New("unknown keycode")

var (
	//nolint:gochecknoglobals // Built once from the evdev code table.
	keycodesByName map[string]Keycode
	//nolint:gochecknoglobals // Guards keycodesByName construction.
	keycodesOnce sync.Once
)

// ParseKeycode resolves a key name such as "KEY_A", "a" or "30" into a Keycode.
func ParseKeycode(name string) (Keycode, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownKeycode)
	}

	if n, err := strconv.ParseUint(name, 10, 16); err == nil {
		return Keycode(n), nil
	}

	keycodesOnce.Do(buildKeycodeIndex)

	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, "KEY_") && !strings.HasPrefix(upper, "BTN_") {
		upper = "KEY_" + upper
	}

	code, ok := keycodesByName[upper]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKeycode, name)
	}

	return code, nil
}

// String returns the KEY_* name of the keycode, or its number.
func (k Keycode) String() string {
	if name, ok := evdev.KEYToString[evdev.EvCode(k)]; ok {
		// Aliased codes are listed as "KEY_X/KEY_Y".
		first, _, _ := strings.Cut(name, "/")

		return first
	}

	return strconv.Itoa(int(k))
}

func buildKeycodeIndex() {
	keycodesByName = make(map[string]Keycode, len(evdev.KEYToString))
	for code, names := range evdev.KEYToString {
		for name := range strings.SplitSeq(names, "/") {
			keycodesByName[name] = Keycode(code)
		}
	}
}
