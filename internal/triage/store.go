package triage

import "context"

// Store is the persistence interface for triage results, keyed by image name.
type Store interface {
	// Get retrieves a result by image name.
	Get(ctx context.Context, imageName string) (*Result, bool, error)
	// Put writes r, replacing every field of any existing row with the same image name.
	Put(ctx context.Context, r *Result) error
	// Names returns every stored image name.
	Names(ctx context.Context) ([]string, error)
	// List returns every result ordered by severity rating descending, unrated last.
	List(ctx context.Context) ([]*Result, error)
}

// BlobStore is the image storage the pipeline reads from and uploads to.
type BlobStore interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// Notifier delivers a graded result to an external channel.
type Notifier interface {
	Send(ctx context.Context, r *Result) error
}
