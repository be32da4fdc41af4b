package entity

// Address is the normalized navigation target of the browser's active page.
// A non-zero Address is never empty and never an internal placeholder page.
type Address string

// String returns the address in URL form.
func (a Address) String() string {
	return string(a)
}

// IsZero reports whether no address was observed.
func (a Address) IsZero() bool {
	return a == ""
}
