// ABOUTME: Runs the shared store conformance suite against the KV backend
// ABOUTME: Also checks key layout ordering and id escaping
package kv_test

import (
	"strings"
	"testing"
	"time"

	"github.com/harper/attune/internal/storage"
	"github.com/harper/attune/internal/storage/kv"
	"github.com/harper/attune/internal/storage/storetest"
)

func TestStorageConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		s := kv.NewInMemory()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestEventKeysSortByTime(t *testing.T) {
	early := kv.EventKey("u1", time.Unix(9, 0), "evt_b")
	late := kv.EventKey("u1", time.Unix(10, 0), "evt_a")
	if !(early < late) {
		t.Errorf("expected %q < %q", early, late)
	}
}

func TestKeysEscapeSeparators(t *testing.T) {
	a := kv.EventUserPrefix("u1")
	b := kv.EventKey("u1:x", time.Unix(1, 0), "evt")
	if strings.HasPrefix(b, a) {
		t.Errorf("user u1:x leaks into u1 prefix: %q", b)
	}
}
