package bootstrap

import "context"

// Seeder loads reference data once storage is ready.
type Seeder[S any] struct {
	Name string
	Seed func(ctx context.Context, storage S) error
}

// Provider builds the services of the process over storage.
type Provider[S any] func(ctx context.Context, storage S) (any, error)

// Modules groups the application hooks run after storage is ready.
type Modules[S any] struct {
	Seeders  []Seeder[S]
	Services Provider[S]
}
