package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// BindingRef points an entity at a channel of a binding.
type BindingRef struct {
	BindingID string
	Index     int
}

// String returns the "bindingID.index" form.
func (r BindingRef) String() string {
	return r.BindingID + "." + strconv.Itoa(r.Index)
}

// ParseBindingRef parses "bindingID.index". Without a numeric suffix the
// whole value is the binding ID and the index is 0, so "lcdBinding" and
// "lcdBinding.0" are the same reference.
func ParseBindingRef(value string) (BindingRef, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return BindingRef{}, fmt.Errorf("%w: empty", ErrInvalidBindingRef)
	}

	dot := strings.LastIndex(value, ".")
	if dot < 0 {
		return BindingRef{BindingID: value}, nil
	}

	id, suffix := value[:dot], value[dot+1:]
	index, err := strconv.Atoi(suffix)
	if err != nil || strconv.Itoa(index) != suffix {
		return BindingRef{BindingID: value}, nil
	}
	if index < 0 {
		return BindingRef{}, fmt.Errorf("%w: negative index in %q", ErrInvalidBindingRef, value)
	}
	if id == "" {
		return BindingRef{}, fmt.Errorf("%w: missing binding id in %q", ErrInvalidBindingRef, value)
	}
	return BindingRef{BindingID: id, Index: index}, nil
}
