package r2client

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompressFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "sessions.db")
	packed := filepath.Join(dir, "sessions.db.zst")
	restored := filepath.Join(dir, "restored.db")

	data := []byte(strings.Repeat("chat-123|Muffin fan|welcomed\n", 2000))
	if err := os.WriteFile(src, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CompressFile(src, packed); err != nil {
		t.Fatalf("CompressFile: %v", err)
	}
	info, err := os.Stat(packed)
	if err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}
	if info.Size() >= int64(len(data)) {
		t.Errorf("compressed size %d not smaller than %d", info.Size(), len(data))
	}

	f, err := os.Open(packed)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := DecompressTo(f, restored); err != nil {
		t.Fatalf("DecompressTo: %v", err)
	}
	got, err := os.ReadFile(restored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("restored content differs from source")
	}
}

func TestCompressFile_MissingSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := CompressFile(filepath.Join(dir, "absent.db"), filepath.Join(dir, "out.zst")); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestDecompressTo_InvalidDataLeavesNoFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "sessions.db")

	if err := DecompressTo(strings.NewReader("definitely not zstd"), dst); err == nil {
		t.Fatal("expected error for invalid input")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("destination should not exist, stat err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
