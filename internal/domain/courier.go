package domain

type Courier struct {
	ID         string
	FullName   string
	Email      string
	Mobile     string
	IsApproved bool
	IsActive   bool
}

// Available covers the courier-level half of delivery eligibility; the
// one-active-delivery half needs the store.
func (c Courier) Available() bool {
	return c.IsApproved && c.IsActive
}

type Shop struct {
	ID      string
	OwnerID string
	Name    string
}
