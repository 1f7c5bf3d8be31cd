package model

// Item is the domain model for a stored list entry.
// ID is assigned by the store on creation and is empty until then; it never
// travels inside a Firestore document body.
type Item struct {
	ID          string `json:"id" yaml:"id" firestore:"-"`
	Title       string `json:"title" yaml:"title" firestore:"title"`
	Description string `json:"description" yaml:"description" firestore:"description"`
}

// Persisted reports whether the store has assigned an id.
func (i Item) Persisted() bool { return i.ID != "" }
