package protocol

import (
	"errors"
	"fmt"
)

// Class is the character class an approval code must belong to.
type Class string

const (
	Numeric      Class = "numeric"
	Alphanumeric Class = "alphanumeric"
)

// Descriptor governs the auth code rules of one POS protocol variant.
type Descriptor struct {
	Name   string `json:"name"`
	Length int    `json:"approval_length"`
	Class  Class  `json:"class"`
	// OnLedger is false for mail-order style variants.
	OnLedger bool `json:"is_onledger"`
}

var ErrUnknown = errors.New("unknown protocol")

var descriptors = []Descriptor{
	{Name: "POS Terminal -101.1 (4-digit approval)", Length: 4, Class: Numeric, OnLedger: true},
	{Name: "POS Terminal -101.4 (6-digit approval)", Length: 6, Class: Numeric, OnLedger: true},
	{Name: "POS Terminal -101.6 (Pre-authorization)", Length: 6, Class: Numeric, OnLedger: true},
	{Name: "POS Terminal -101.7 (4-digit approval)", Length: 4, Class: Numeric, OnLedger: true},
	{Name: "POS Terminal -101.8 (PIN-LESS transaction)", Length: 4, Class: Alphanumeric, OnLedger: false},
	{Name: "POS Terminal -201.1 (6-digit approval)", Length: 6, Class: Numeric, OnLedger: true},
	{Name: "POS Terminal -201.3 (6-digit approval)", Length: 6, Class: Alphanumeric, OnLedger: false},
	{Name: "POS Terminal -201.5 (6-digit approval)", Length: 6, Class: Alphanumeric, OnLedger: false},
}

var byName = func() map[string]Descriptor {
	m := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.Name] = d
	}
	return m
}()

// All returns a copy of the descriptor table in display order.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Lookup resolves a protocol by its exact name.
func Lookup(name string) (Descriptor, error) {
	d, ok := byName[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%q: %w", name, ErrUnknown)
	}
	return d, nil
}

// Allows reports whether r belongs to the descriptor's character class.
func (d Descriptor) Allows(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case d.Class == Alphanumeric && ((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')):
		return true
	}
	return false
}

// Matches reports whether every character of code belongs to the class.
func (d Descriptor) Matches(code string) bool {
	for _, r := range code {
		if !d.Allows(r) {
			return false
		}
	}
	return true
}

// Filter keeps only allowed characters and truncates to the required length.
// Meant for live input handling; it never replaces validation.
func (d Descriptor) Filter(input string) string {
	out := make([]rune, 0, d.Length)
	for _, r := range input {
		if len(out) == d.Length {
			break
		}
		if d.Allows(r) {
			out = append(out, r)
		}
	}
	return string(out)
}

// State is the visual state of a partially typed auth code.
type State int

const (
	StateEmpty State = iota
	StatePartial
	StateValid
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePartial:
		return "partial"
	case StateValid:
		return "valid"
	default:
		return "invalid"
	}
}

// State derives the input state of code as typed, without filtering it.
func (d Descriptor) State(code string) State {
	n := len([]rune(code))
	switch {
	case n == 0:
		return StateEmpty
	case !d.Matches(code) || n > d.Length:
		return StateInvalid
	case n < d.Length:
		return StatePartial
	}
	return StateValid
}

// Placeholder is the hint shown in an empty auth code field.
func (d Descriptor) Placeholder() string {
	if d.Class == Alphanumeric {
		return fmt.Sprintf("%d-character code", d.Length)
	}
	return fmt.Sprintf("%d-digit code", d.Length)
}
