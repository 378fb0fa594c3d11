package customer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
)

// StoredAddress is one element of the customers.addresses column. Older
// profiles saved the address as a single free-text string, newer ones as an
// object. Exactly one of the two implementations is produced by decoding.
type StoredAddress interface {
	resolve(table *LocationTable) checkout.Address
}

// LegacyAddress is a free-text address. The city is recovered by matching
// known city names against the text.
type LegacyAddress struct {
	Text string
}

type StructuredAddress struct {
	Label      string `json:"label"`
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Street     string `json:"street"`
	CityID     string `json:"city_id"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	IsPrimary  bool   `json:"is_primary"`
}

var ErrMalformedAddress = errors.New("malformed address")

// DecodeAddresses parses the raw addresses column. A null or empty column
// yields no addresses.
func DecodeAddresses(raw []byte) ([]StoredAddress, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	// A bare string column predates the array layout.
	if raw[0] == '"' {
		a, err := decodeAddress(raw)
		if err != nil || a == nil {
			return nil, err
		}
		return []StoredAddress{a}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}

	out := make([]StoredAddress, 0, len(elems))
	for i, elem := range elems {
		a, err := decodeAddress(elem)
		if err != nil {
			return nil, fmt.Errorf("address %d: %w", i, err)
		}
		if a != nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func decodeAddress(raw json.RawMessage) (StoredAddress, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrMalformedAddress
	}

	switch raw[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		return LegacyAddress{Text: text}, nil
	case '{':
		var s StructuredAddress
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
		}
		return s, nil
	case 'n':
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %q", ErrMalformedAddress, raw[0])
	}
}

func (a LegacyAddress) resolve(table *LocationTable) checkout.Address {
	out := checkout.Address{Street: a.Text}
	if loc, ok := table.MatchText(a.Text); ok {
		out.CityID = loc.ID
		out.City = loc.City
		out.Province = loc.Province
		out.PostalCode = loc.PostalCode
	}
	return out
}

func (a StructuredAddress) resolve(table *LocationTable) checkout.Address {
	out := checkout.Address{
		Label:      a.Label,
		Recipient:  a.Recipient,
		Phone:      a.Phone,
		Street:     a.Street,
		CityID:     a.CityID,
		City:       a.City,
		Province:   a.Province,
		PostalCode: a.PostalCode,
		IsPrimary:  a.IsPrimary,
	}

	var (
		loc Location
		ok  bool
	)
	if out.CityID != "" {
		loc, ok = table.ByID(out.CityID)
	} else if out.City != "" {
		loc, ok = table.ByCity(out.City)
	}
	if !ok {
		return out
	}

	out.CityID = loc.ID
	if out.City == "" {
		out.City = loc.City
	}
	if out.Province == "" {
		out.Province = loc.Province
	}
	if out.PostalCode == "" {
		out.PostalCode = loc.PostalCode
	}
	return out
}

func needsLookup(addrs []StoredAddress) bool {
	for _, a := range addrs {
		switch v := a.(type) {
		case LegacyAddress:
			return true
		case StructuredAddress:
			if v.CityID == "" || v.City == "" || v.Province == "" {
				return true
			}
		}
	}
	return false
}

// Normalize resolves every stored address against table. Table may be nil,
// in which case addresses are copied as stored.
func Normalize(addrs []StoredAddress, table *LocationTable) []checkout.Address {
	out := make([]checkout.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.resolve(table))
	}
	return out
}
