package oneshot

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy selects which event, if any, disarms an armed layer.
type Policy int

const (
	// PolicyNone never disarms on events; the timeout is the only disarm path.
	PolicyNone Policy = iota
	// PolicyOnAnyOtherPhysicalPress disarms when a different physical key is pressed,
	// before that key is translated, so it is produced on the base layer.
	PolicyOnAnyOtherPhysicalPress
	// PolicyOnFirstTranslatedKeyPress disarms right after the first translated key press,
	// so exactly one key is produced on the one-shot layer.
	PolicyOnFirstTranslatedKeyPress
	// PolicyOnFirstTranslatedKeyPressAfterEmission is PolicyOnFirstTranslatedKeyPress with
	// the disarm queued behind the emission of the triggering press.
	PolicyOnFirstTranslatedKeyPressAfterEmission
)

// Stream names the event stream a policy observes.
type Stream int

const (
	// StreamNone means the policy observes nothing.
	StreamNone Stream = iota
	// StreamPosition is the pre-translation physical position stream.
	StreamPosition
	// StreamKeycode is the post-translation keycode stream.
	StreamKeycode
)

// ErrUnknownPolicy is returned when a policy name cannot be parsed.
var ErrUnknownPolicy = errors.New("unknown cancel policy")

//nolint:gochecknoglobals // Constant lookup table.
var policyNames = map[Policy]string{
	PolicyNone:                                   "none",
	PolicyOnAnyOtherPhysicalPress:                "on-any-other-physical-press",
	PolicyOnFirstTranslatedKeyPress:              "on-first-translated-key-press",
	PolicyOnFirstTranslatedKeyPressAfterEmission: "on-first-translated-key-press-after-emission",
}

// ParsePolicy converts a policy name into a Policy.
// Underscores and dashes are interchangeable; case is ignored.
func ParsePolicy(s string) (Policy, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	if normalized == "" {
		return PolicyNone, nil
	}

	for policy, name := range policyNames {
		if name == normalized {
			return policy, nil
		}
	}

	return PolicyNone, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// String returns the canonical policy name.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}

	return fmt.Sprintf("Policy(%d)", int(p))
}

// Valid reports whether p is one of the declared policies.
func (p Policy) Valid() bool {
	_, ok := policyNames[p]

	return ok
}

// Stream returns the event stream the policy listens to.
// Pre-emptive cancel must see physical events before translation,
// use-once cancel must see keycodes after translation.
func (p Policy) Stream() Stream {
	switch p {
	case PolicyOnAnyOtherPhysicalPress:
		return StreamPosition
	case PolicyOnFirstTranslatedKeyPress, PolicyOnFirstTranslatedKeyPressAfterEmission:
		return StreamKeycode
	default:
		return StreamNone
	}
}

// MarshalYAML encodes the policy by name.
func (p Policy) MarshalYAML() (any, error) {
	return p.String(), nil
}

// UnmarshalYAML decodes the policy from its name.
func (p *Policy) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return fmt.Errorf("decode cancel policy: %w", err)
	}

	parsed, err := ParsePolicy(name)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}
