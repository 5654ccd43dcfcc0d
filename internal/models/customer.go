package models

import (
	"strings"

	"github.com/reports-aggregator/internal/types"
)

// Customer represents a bank customer as returned by the customers service.
// Personal customers carry first/last name and dni; business customers carry
// businessName, ruc and legalRepresentative.
type Customer struct {
	ID                  string             `json:"id"`
	Type                types.CustomerType `json:"type"`
	Email               string             `json:"email,omitempty"`
	Phone               string             `json:"phone,omitempty"`
	FirstName           string             `json:"firstName,omitempty"`
	LastName            string             `json:"lastName,omitempty"`
	DNI                 string             `json:"dni,omitempty"`
	BusinessName        string             `json:"businessName,omitempty"`
	RUC                 string             `json:"ruc,omitempty"`
	LegalRepresentative string             `json:"legalRepresentative,omitempty"`
}

// FullName joins first and last name. Business customers without personal names
// fall back to the business name.
func (c *Customer) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
	if name == "" {
		return strings.TrimSpace(c.BusinessName)
	}
	return name
}
