package adapter

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/agriai/pkg/interfaces"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultFirestoreCollection = "agriai_kv"

// Firestore is a KVStore that keeps one document per key, so that history and
// preferences follow the user across devices.
type Firestore struct {
	client     *firestore.Client
	collection string
}

// FirestoreOption is a functional option for the Firestore store
type FirestoreOption func(*Firestore)

// WithCollection overrides the collection that holds the key documents
func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

type kvDoc struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestore creates a Firestore backed KVStore
func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID),
		)
	}

	f := &Firestore{
		client:     client,
		collection: defaultFirestoreCollection,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) doc(key string) *firestore.DocumentRef {
	return f.client.Collection(f.collection).Doc(key)
}

func (f *Firestore) Get(ctx context.Context, key string) (string, error) {
	snap, err := f.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", goerr.Wrap(interfaces.ErrKeyNotFound, "no value", goerr.V("key", key))
		}
		return "", goerr.Wrap(err, "failed to get document", goerr.V("key", key))
	}

	var doc kvDoc
	if err := snap.DataTo(&doc); err != nil {
		return "", goerr.Wrap(err, "failed to decode document", goerr.V("key", key))
	}
	return doc.Value, nil
}

func (f *Firestore) Set(ctx context.Context, key, value string) error {
	doc := kvDoc{Value: value, UpdatedAt: time.Now()}
	if _, err := f.doc(key).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to set document", goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Remove(ctx context.Context, key string) error {
	if _, err := f.doc(key).Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete document", goerr.V("key", key))
	}
	return nil
}

// Close closes the underlying client
func (f *Firestore) Close() error {
	return f.client.Close()
}
