// Package entities defines the synced reference-data record types and the
// registry that owns one sync manager per entity type.
package entities

import "possync"

// Entity type names double as store namespaces and notifier topic segments.
const (
	TypeBrand    = "brand"
	TypeCategory = "category"
	TypeUnit     = "unit"
	TypeCustomer = "customer"
)

// Plural field names as nested in the remote list payloads.
const (
	PluralBrands     = "brands"
	PluralCategories = "categories"
	PluralUnits      = "units"
	PluralCustomers  = "customers"
)

// Brand is one product brand within a store.
type Brand struct {
	possync.BaseRecord
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// Category is one product category within a store.
type Category struct {
	possync.BaseRecord
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ParentID    string `json:"parentId,omitempty"`
	Status      string `json:"status,omitempty"`
}

// Unit is one measurement unit (e.g. piece, kg) within a store.
type Unit struct {
	possync.BaseRecord
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Customer is one customer account within a store.
type Customer struct {
	possync.BaseRecord
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	Status  string `json:"status,omitempty"`
}
