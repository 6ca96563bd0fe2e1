package sessions

// Repo stores sessions by ID. Implementations copy on the way in and out.
type Repo interface {
	// Upsert creates or replaces a session
	Upsert(session Session) error

	// Get retrieves a session by ID
	Get(sessionID string) (Session, error)

	// Delete removes a session; deleting an unknown ID is not an error
	Delete(sessionID string) error

	// List returns every stored session
	List() ([]Session, error)
}
