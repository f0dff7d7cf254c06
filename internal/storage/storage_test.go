package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"velovis/internal/config"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		name                string
		category, base, ext string
		want                string
	}{
		{name: "plain", category: "outbox", base: "abc-123", ext: "eml", want: "outbox/2025/03/09/abc-123.eml"},
		{name: "sanitised", category: "Out Box", base: "../../etc", ext: ".EML", want: "outbox/2025/03/09/etc.eml"},
		{name: "defaults", category: "", base: "x", ext: "", want: "misc/2025/03/09/x.bin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ObjectKey(tt.category, at, tt.base, tt.ext); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLocalStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewObjectStore(config.Config{StorageType: TypeLocal, StorageLocalDir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key, err := store.Put(context.Background(), "outbox/2025/01/01/a.eml", []byte("hello"), "message/rfc822")
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil || string(data) != "hello" {
		t.Fatalf("unexpected content %q (%v)", data, err)
	}

	if _, err := store.Put(context.Background(), key, []byte("again"), ""); err == nil {
		t.Fatal("expected overwrite to be refused")
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"", "../escape.eml", "a/../../escape.eml"} {
		if _, err := store.Put(context.Background(), key, []byte("x"), ""); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}

func TestNewObjectStoreValidatesRemoteConfig(t *testing.T) {
	for _, typ := range []string{TypeS3, TypeR2, TypeOSS, TypeCOS, "ftp"} {
		t.Run(typ, func(t *testing.T) {
			if _, err := NewObjectStore(config.Config{StorageType: typ}); err == nil {
				t.Fatalf("expected error for incomplete %s config", typ)
			}
		})
	}
}
