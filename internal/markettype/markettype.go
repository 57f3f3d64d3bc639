// Package markettype enumerates the instrument classes the orderbook core
// tracks per symbol: spot, perpetual and option.
package markettype

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned when an input does not map to a known market type.
var ErrNotSupported = errors.New("unsupported market type")

// Item stores the market type.
type Item uint8

// Items stores a list of market types.
type Items []Item

// Const vars for the markettype package.
const (
	Empty Item = iota
	Spot
	Perpetual
	Option

	spot      = "spot"
	perpetual = "perpetual"
	option    = "option"
)

var supportedList = Items{Spot, Perpetual, Option}

// Supported returns the list of supported market types.
func Supported() Items {
	return supportedList
}

// String converts an Item to its string representation.
func (i Item) String() string {
	switch i {
	case Spot:
		return spot
	case Perpetual:
		return perpetual
	case Option:
		return option
	default:
		return ""
	}
}

// Strings converts a market type list to a string slice.
func (i Items) Strings() []string {
	out := make([]string, len(i))
	for x := range i {
		out[x] = i[x].String()
	}
	return out
}

// Contains returns whether the supplied market type exists in the list.
func (i Items) Contains(item Item) bool {
	if !item.IsValid() {
		return false
	}
	for x := range i {
		if i[x] == item {
			return true
		}
	}
	return false
}

// IsValid returns whether the market type is one of the supported values.
func (i Item) IsValid() bool {
	return i == Spot || i == Perpetual || i == Option
}

// IsDerivative returns true for perpetual or option market types. On
// Binance these feeds carry the pu continuity field that spot feeds do not.
func (i Item) IsDerivative() bool {
	return i == Perpetual || i == Option
}

// New maps a string to a market type, case-insensitive.
func New(input string) (Item, error) {
	switch strings.ToLower(input) {
	case spot:
		return Spot, nil
	case perpetual:
		return Perpetual, nil
	case option:
		return Option, nil
	default:
		return Empty, fmt.Errorf("%w '%v', only supports %s", ErrNotSupported, input, supportedList.Strings())
	}
}

// UnmarshalJSON conforms the type to the json.Unmarshaler interface.
func (i *Item) UnmarshalJSON(d []byte) error {
	var s string
	if err := json.Unmarshal(d, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	item, err := New(s)
	if err != nil {
		return err
	}
	*i = item
	return nil
}

// MarshalJSON conforms the type to the json.Marshaler interface.
func (i Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}
