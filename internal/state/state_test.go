package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_EmptyPath(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	_, err = New("   ")
	if err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestLoad_ColdStart(t *testing.T) {
	st, err := New(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	wm, err := st.Load()
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if wm != 0 {
		t.Errorf("watermark = %d, want 0 on cold start", wm)
	}
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := st.Save(1700000000); err != nil {
		t.Fatalf("Save: %v", err)
	}

	wm, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if wm != 1700000000 {
		t.Errorf("watermark = %d, want 1700000000", wm)
	}

	// Temp file must not survive a successful save.
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temp file left behind after save")
	}
}

func TestSave_CreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "state.json")
	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := st.Save(42); err != nil {
		t.Fatalf("Save into missing dir: %v", err)
	}
	wm, err := st.Load()
	if err != nil || wm != 42 {
		t.Fatalf("Load = %d, %v; want 42, nil", wm, err)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "this is not json"},
		{"truncated", `{"watermark": 17`},
		{"negative", `{"watermark": -5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write fixture: %v", err)
			}

			st, err := New(path)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			_, err = st.Load()
			if !errors.Is(err, ErrCorrupt) {
				t.Errorf("Load = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestLoad_UnknownFieldsIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	content := `{"watermark": 123, "future_field": {"nested": true}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	st, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wm, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if wm != 123 {
		t.Errorf("watermark = %d, want 123", wm)
	}
}

func TestLock_SecondInstanceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	first, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Lock(); err != nil {
		t.Fatalf("first Lock: %v", err)
	}
	defer func() { _ = first.Unlock() }()

	second, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Lock(); err == nil {
		_ = second.Unlock()
		t.Fatal("expected second Lock to fail while first holds the lock")
	}
}
