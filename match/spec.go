// Package match implements the single predicate type every Monitor,
// enumerate, and find call in this module filters devices through:
// match.Spec, unifying what the source library called _hs_filter and
// _hs_match_helper into one name per spec.md's own open question.
package match

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ardnew/tyhs/device"
)

// Spec is a predicate over device.Device: {type?, vid?, pid?, path?}. A
// zero-valued field means "any" — VID/PID zero are never valid USB IDs, and
// Type/Path use explicit HasType/Path presence instead of overloading a
// zero value that Type and string both already use meaningfully.
type Spec struct {
	Type     device.Type
	HasType  bool
	VID      uint16
	PID      uint16
	Path     string
	UserData any
}

// Matches reports whether d satisfies every present field of s.
func (s Spec) Matches(d *device.Device) bool {
	if s.HasType && s.Type != d.Type {
		return false
	}
	if s.VID != 0 && s.VID != d.VID {
		return false
	}
	if s.PID != 0 && s.PID != d.PID {
		return false
	}
	if s.Path != "" && s.Path != d.Path {
		return false
	}
	return true
}

// String renders s in the "VID:PID[/TYPE]" grammar Parse accepts, the
// canonical form spec.md §8's match_parse round-trip property requires.
// VID/PID render as 4-digit hex regardless of whether they were given as
// wildcards elsewhere in the struct (a Spec with no VID/PID serializes as
// "0000:0000").
func (s Spec) String() string {
	str := fmt.Sprintf("%04x:%04x", s.VID, s.PID)
	if s.HasType {
		str += "/" + s.Type.String()
	}
	return str
}

// Parse parses the match string grammar of spec.md §6: "VID:PID[/TYPE]" in
// hex, TYPE in {hid, serial}, permissive of leading whitespace. Missing
// VID/PID components default to the wildcard value 0.
func Parse(s string) (Spec, error) {
	s = strings.TrimLeft(s, " \t")

	var typeToken string
	idPart := s
	if i := strings.IndexByte(s, '/'); i >= 0 {
		idPart = s[:i]
		typeToken = s[i+1:]
	}

	var vidStr, pidStr string
	if i := strings.IndexByte(idPart, ':'); i >= 0 {
		vidStr, pidStr = idPart[:i], idPart[i+1:]
	} else {
		vidStr = idPart
	}

	spec := Spec{}

	if vidStr != "" {
		v, err := strconv.ParseUint(vidStr, 16, 16)
		if err != nil {
			return Spec{}, fmt.Errorf("match: invalid VID %q: %w", vidStr, err)
		}
		spec.VID = uint16(v)
	}
	if pidStr != "" {
		v, err := strconv.ParseUint(pidStr, 16, 16)
		if err != nil {
			return Spec{}, fmt.Errorf("match: invalid PID %q: %w", pidStr, err)
		}
		spec.PID = uint16(v)
	}
	if typeToken != "" {
		t, ok := device.ParseType(typeToken)
		if !ok {
			return Spec{}, fmt.Errorf("match: invalid type %q", typeToken)
		}
		spec.Type = t
		spec.HasType = true
	}

	return spec, nil
}
