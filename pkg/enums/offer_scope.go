package enums

import "fmt"

// OfferScope says whether an offer targets one product or one category.
type OfferScope string

const (
	OfferScopeProduct  OfferScope = "product"
	OfferScopeCategory OfferScope = "category"
)

var validOfferScopes = []OfferScope{
	OfferScopeProduct,
	OfferScopeCategory,
}

// String implements fmt.Stringer.
func (o OfferScope) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OfferScope.
func (o OfferScope) IsValid() bool {
	for _, candidate := range validOfferScopes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOfferScope converts raw input into an OfferScope.
func ParseOfferScope(value string) (OfferScope, error) {
	for _, candidate := range validOfferScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offer scope %q", value)
}
