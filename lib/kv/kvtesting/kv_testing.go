// Package kvtesting provides a reusable test suite for kv.IStore
// implementations. Every backend runs the same suite so that the census core
// can treat them as interchangeable.
package kvtesting

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/namelessnanashi/census/lib/kv"
)

// StoreFactory is a function that creates a new instance of a kv.IStore implementation
type StoreFactory func() kv.IStore

// RunStoreTests runs a comprehensive test suite for a kv.IStore implementation.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("ListPrefix", func(t *testing.T) {
			testListPrefix(t, factory())
		})

		t.Run("ListPagination", func(t *testing.T) {
			testListPagination(t, factory())
		})

		t.Run("ValueIsolation", func(t *testing.T) {
			testValueIsolation(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// ListAllKeys pages through a full prefix listing, looping until the store
// reports no further cursor. It is also used by store-specific tests.
func ListAllKeys(t testing.TB, store kv.IStore, prefix string) []string {
	t.Helper()

	var (
		keys   []string
		cursor string
	)
	for {
		page, err := store.List(prefix, cursor)
		if err != nil {
			t.Fatalf("List(%q, %q) failed: %v", prefix, cursor, err)
		}
		for _, k := range page.Keys {
			keys = append(keys, k.Name)
		}
		if page.Cursor == "" {
			return keys
		}
		cursor = page.Cursor
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, store kv.IStore) {
	defer store.Close()

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	if err := store.Put(testKey, testValue1, kv.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	result, exists, err := store.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	if err := store.Put(testKey, testValue2, kv.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	result, exists, err = store.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !exists {
		t.Errorf("Expected key %s to exist after overwrite", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists, err = store.Get("nonexistent-key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, store kv.IStore) {
	defer store.Close()

	testKey := "delete-key"

	if err := store.Put(testKey, []byte("value"), kv.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(testKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, exists, err := store.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if exists {
		t.Errorf("Expected key %s to be gone after Delete", testKey)
	}

	// deleting an absent key is not an error
	if err := store.Delete("never-existed"); err != nil {
		t.Errorf("Delete of absent key returned error: %v", err)
	}
}

func testListPrefix(t *testing.T, store kv.IStore) {
	defer store.Close()

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("counts:2024-01-0%d:demo", i+1)
		if err := store.Put(key, []byte("1"), kv.PutOptions{}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := store.Put("seen:2024-01-01:demo:abc", []byte("1"), kv.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	keys := ListAllKeys(t, store, "counts:")
	if len(keys) != 5 {
		t.Errorf("Expected 5 keys with prefix counts:, got %d (%v)", len(keys), keys)
	}
	for _, key := range keys {
		if key[:7] != "counts:" {
			t.Errorf("Key %s does not match requested prefix", key)
		}
	}

	keys = ListAllKeys(t, store, "maintenance:")
	if len(keys) != 0 {
		t.Errorf("Expected no keys with prefix maintenance:, got %v", keys)
	}
}

func testListPagination(t *testing.T, store kv.IStore) {
	defer store.Close()

	const total = 57
	want := make(map[string]bool, total)
	for i := 0; i < total; i++ {
		key := fmt.Sprintf("page:%03d", i)
		want[key] = true
		if err := store.Put(key, []byte("v"), kv.PutOptions{}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys := ListAllKeys(t, store, "page:")
	if len(keys) != total {
		t.Errorf("Expected %d keys across all pages, got %d", total, len(keys))
	}
	for _, key := range keys {
		if !want[key] {
			t.Errorf("Unexpected or duplicate key in listing: %s", key)
		}
		delete(want, key)
	}
	for key := range want {
		t.Errorf("Key %s missing from listing", key)
	}
}

func testValueIsolation(t *testing.T, store kv.IStore) {
	defer store.Close()

	testKey := "isolation-key"
	if err := store.Put(testKey, []byte("original"), kv.PutOptions{}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrievedValue, _, err := store.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	retrievedValue[0] = 'X'

	originalValue, _, err := store.Get(testKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}
