package docsystem

// Actor is the authenticated caller of a mutation, as supplied by the
// authorization gate.
type Actor struct {
	ID         string
	Privileged bool
	ClientIP   string
	UserAgent  string
}
