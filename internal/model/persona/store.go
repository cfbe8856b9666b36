package persona

// Store exposes persona retrieval to the session and the handlers.
type Store interface {
	List() ([]Persona, error)
	FindByID(id string) (Persona, bool, error)
}
