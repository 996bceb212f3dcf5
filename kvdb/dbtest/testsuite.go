// Package dbtest provides a suite of tests run against every kvdb backend.
package dbtest

import (
	"bytes"
	"testing"

	"github.com/tos-network/wasmbench/kvdb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() kvdb.KeyValueStore) {
	t.Run("Has", func(t *testing.T) {
		db := New()
		defer db.Close()

		if got, err := db.Has([]byte("key")); err != nil {
			t.Fatal(err)
		} else if got {
			t.Errorf("wrong value: %t", got)
		}
		if err := db.Put([]byte("key"), []byte("value")); err != nil {
			t.Fatal(err)
		}
		if got, err := db.Has([]byte("key")); err != nil {
			t.Fatal(err)
		} else if !got {
			t.Errorf("wrong value: %t", got)
		}
		if err := db.Delete([]byte("key")); err != nil {
			t.Fatal(err)
		}
		if got, err := db.Has([]byte("key")); err != nil {
			t.Fatal(err)
		} else if got {
			t.Errorf("wrong value: %t", got)
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := New()
		defer db.Close()

		if _, err := db.Get([]byte("key")); err != kvdb.ErrNotFound {
			t.Fatalf("expected kvdb.ErrNotFound, got %v", err)
		}
		if err := db.Put([]byte("key"), []byte("value")); err != nil {
			t.Fatal(err)
		}
		if got, err := db.Get([]byte("key")); err != nil {
			t.Fatal(err)
		} else if !bytes.Equal(got, []byte("value")) {
			t.Errorf("wrong value: %q", got)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db := New()
		defer db.Close()

		if err := db.Put([]byte("key"), []byte("a")); err != nil {
			t.Fatal(err)
		}
		if err := db.Put([]byte("key"), []byte("b")); err != nil {
			t.Fatal(err)
		}
		if got, err := db.Get([]byte("key")); err != nil {
			t.Fatal(err)
		} else if !bytes.Equal(got, []byte("b")) {
			t.Errorf("wrong value: %q", got)
		}
	})

	t.Run("PrefixIterator", func(t *testing.T) {
		db := New()
		defer db.Close()

		content := map[string]string{
			"a1": "v1", "a2": "v2", "a3": "v3",
			"b1": "x1", "b2": "x2",
		}
		for key, value := range content {
			if err := db.Put([]byte(key), []byte(value)); err != nil {
				t.Fatal(err)
			}
		}
		it := db.NewIterator([]byte("a"))
		defer it.Release()

		var (
			keys   []string
			values []string
		)
		for it.Next() {
			keys = append(keys, string(it.Key()))
			values = append(values, string(it.Value()))
		}
		wantKeys := []string{"a1", "a2", "a3"}
		wantValues := []string{"v1", "v2", "v3"}
		if len(keys) != len(wantKeys) {
			t.Fatalf("iterated %d keys, want %d", len(keys), len(wantKeys))
		}
		for i := range keys {
			if keys[i] != wantKeys[i] || values[i] != wantValues[i] {
				t.Errorf("entry %d: have %s=%s want %s=%s",
					i, keys[i], values[i], wantKeys[i], wantValues[i])
			}
		}
	})
}
