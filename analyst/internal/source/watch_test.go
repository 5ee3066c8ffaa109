package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatchFiles_NotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "record.json")
	other := filepath.Join(dir, "other.json")
	for _, p := range []string{target, other} {
		if err := os.WriteFile(p, []byte(`{}`), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan string, 8)
	go func() {
		_ = WatchFiles(ctx, []string{target}, func(p string) {
			select {
			case changed <- p:
			default:
			}
		})
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(other, []byte(`{"revenue": 1}`), 0o600); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(target, []byte(`{"revenue": 2}`), 0o600); err != nil {
		t.Fatalf("write target: %v", err)
	}

	want, _ := filepath.Abs(target)
	select {
	case got := <-changed:
		if got != want {
			t.Errorf("changed path = %q, want %q", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for change notification")
	}
}
