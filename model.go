package possync

// Record is implemented by every cached entity record. The id is assigned by
// the server and unique within the (entityType, tenantID) namespace. Records
// carry no version or timestamp contract; the store stamps arrival time
// itself for staleness decisions.
type Record interface {
	GetID() string
}

// --- BaseRecord Struct ---

// BaseRecord provides the common identifier field for cached entity records.
// It should be embedded into specific record structs.
type BaseRecord struct {
	ID string `json:"id"` // Server-assigned id, unique within tenant+type
}

// GetID returns the record identifier.
// Value receiver so that record value types satisfy Record directly.
func (b BaseRecord) GetID() string {
	return b.ID
}

// SetID sets the record identifier.
func (b *BaseRecord) SetID(id string) {
	b.ID = id
}
