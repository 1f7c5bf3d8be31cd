package cloudstore

import (
	"context"
	"os"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/itemsync/internal/store"
	"github.com/idilsaglam/itemsync/internal/store/storetest"
)

// These tests need the Firestore emulator:
//
//	gcloud emulators firestore start --host-port=localhost:8686
//	FIRESTORE_EMULATOR_HOST=localhost:8686 go test ./internal/store/cloudstore/
func TestContractAgainstEmulator(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	storetest.Run(t, func(t *testing.T) store.Collection {
		s, err := Open(context.Background(), Config{
			Project:    "itemsync-test",
			Collection: "items-" + ulid.Make().String(),
		}, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}, storetest.Options{Unordered: true})
}
