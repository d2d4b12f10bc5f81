package database

// Repository provides data access methods over a shared connection pool.
// One instance is constructed at startup and injected into every service.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying database handle
func (r *Repository) DB() *DB {
	return r.db
}
