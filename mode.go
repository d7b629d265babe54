package lab

import (
	"fmt"
	"strconv"
	"strings"
)

type ModeKind uint8

const (
	KindMono ModeKind = iota
	KindStaticPoly
	KindAutoPoly
)

// A Mode decides how many voices a node has and how its edges pair.
// N is the voice count of a StaticPoly mode and zero otherwise.
type Mode struct {
	Kind ModeKind
	N    int
}

var (
	Mono     = Mode{Kind: KindMono}
	AutoPoly = Mode{Kind: KindAutoPoly}
)

func StaticPoly(n int) Mode { return Mode{Kind: KindStaticPoly, N: n} }

func (m Mode) Validate() error {
	switch m.Kind {
	case KindMono, KindAutoPoly:
		if m.N != 0 {
			return fmt.Errorf("%v with voice count %d: %w", m.Kind, m.N, ErrInvalidMode)
		}
		return nil
	case KindStaticPoly:
		if m.N < 1 {
			return fmt.Errorf("static poly with %d voices: %w", m.N, ErrInvalidVoiceCount)
		}
		return nil
	}
	return fmt.Errorf("kind %d: %w", m.Kind, ErrInvalidMode)
}

func (k ModeKind) String() string {
	switch k {
	case KindMono:
		return "mono"
	case KindStaticPoly:
		return "poly"
	case KindAutoPoly:
		return "autoPoly"
	}
	return "unknown"
}

func (m Mode) String() string {
	if m.Kind == KindStaticPoly {
		return strconv.Itoa(m.N)
	}
	return m.Kind.String()
}

// ParseMode is the inverse of Mode.String: "mono", "autoPoly", or a voice count.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mono":
		return Mono, nil
	case "autopoly", "auto":
		return AutoPoly, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Mode{}, fmt.Errorf("mode %q: %w", s, ErrInvalidMode)
	}
	m := StaticPoly(n)
	if err := m.Validate(); err != nil {
		return Mode{}, err
	}
	return m, nil
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	mm, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = mm
	return nil
}
