// Package address validates shipping addresses and reshapes them into the
// carrier payload. The input value is never modified.
package address

import (
	"strings"

	"github.com/smallbiznis/shiplabel/internal/apperr"
	"github.com/smallbiznis/shiplabel/internal/carrier"
)

type Address struct {
	Street     string `json:"street"`
	Street2    string `json:"street2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	State      string `json:"state,omitempty"`
}

// Validate checks that the address is complete. The country is only checked
// for being two characters long.
func Validate(a Address) error {
	var missing []string
	if strings.TrimSpace(a.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	country := strings.TrimSpace(a.Country)
	if country == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return apperr.New(apperr.CodeInvalidAddress, "missing required address fields: %s", strings.Join(missing, ", "))
	}
	if len([]rune(country)) != 2 {
		return apperr.New(apperr.CodeInvalidAddress, "country must be a 2-letter ISO code, got %q", a.Country)
	}
	return nil
}

// ForCarrier returns the normalized carrier representation of a.
func ForCarrier(a Address) carrier.Address {
	return carrier.Address{
		Address1:    strings.TrimSpace(a.Street),
		Address2:    a.Street2,
		Zipcode:     strings.TrimSpace(a.PostalCode),
		City:        strings.TrimSpace(a.City),
		CountryCode: strings.ToUpper(strings.TrimSpace(a.Country)),
		State:       a.State,
	}
}
