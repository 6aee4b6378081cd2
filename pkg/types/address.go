package types

import "strings"

// Address is the shipping address snapshot copied onto an order at
// placement time. Later edits to the user's saved address never change it.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate reports whether the address carries the fields an order needs.
func (a Address) Validate() error {
	missing := []string{}
	for field, value := range map[string]string{
		"name":        a.Name,
		"line1":       a.Line1,
		"city":        a.City,
		"state":       a.State,
		"postal_code": a.PostalCode,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &AddressError{Missing: missing}
	}
	return nil
}

// AddressError names the missing address fields.
type AddressError struct {
	Missing []string
}

func (e *AddressError) Error() string {
	return "address missing " + strings.Join(e.Missing, ", ")
}
