// usartx/units.go

package usartx

import "strconv"

// NumUnits is the largest number of USARTs on a supported part.
const NumUnits = 6

// Unit identifies a hardware USART by index.
type Unit uint8

func (n Unit) String() string { return "USART" + strconv.Itoa(int(n)) }

// Valid reports whether n names a unit the driver can address.
func (n Unit) Valid() bool { return n < NumUnits }

// Table holds the active units of a program. Units in a table never share
// rings or error state; the zero value is ready to use.
type Table struct {
	units [NumUnits]*USART
}

// Configure binds unit n to hw and stores it in the table. It does not Init.
func (t *Table) Configure(n Unit, hw Hardware, cfg Config) (*USART, error) {
	if !n.Valid() {
		return nil, ErrInvalidUnit
	}
	if t.units[n] != nil {
		return nil, ErrUnitInUse
	}
	u, err := New(hw, cfg)
	if err != nil {
		return nil, err
	}
	t.units[n] = u
	return u, nil
}

// Get returns unit n, or nil if it is not configured.
func (t *Table) Get(n Unit) *USART {
	if !n.Valid() {
		return nil
	}
	return t.units[n]
}

// Release removes unit n from the table. The unit should be closed first.
func (t *Table) Release(n Unit) {
	if n.Valid() {
		t.units[n] = nil
	}
}

// Active lists configured units in index order.
func (t *Table) Active() []Unit {
	var out []Unit
	for i, u := range t.units {
		if u != nil {
			out = append(out, Unit(i))
		}
	}
	return out
}
