package textdigest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDigest_KnownHash(t *testing.T) {
	// "Hello, World!" 的 SHA-256.
	const want = "dffd6021bb2bd5b0af676290809ec3a53191dd81c7f70a4b28688a362182986f"

	got := Digest("Hello, World!")
	if got.TextHash != want {
		t.Errorf("hash = %s, want %s", got.TextHash, want)
	}
	if got.TextLength != 13 {
		t.Errorf("length = %d, want 13", got.TextLength)
	}
	if got.WordCount != 2 {
		t.Errorf("words = %d, want 2", got.WordCount)
	}
	if got.LineCount != 1 {
		t.Errorf("lines = %d, want 1", got.LineCount)
	}
}

func TestDigest_WhitespaceInvariant(t *testing.T) {
	base := Digest("Hello, World!")
	padded := Digest("  \n\tHello, World!  \n")

	if base.TextHash != padded.TextHash {
		t.Error("surrounding whitespace changed the hash")
	}
	if base.TextLength != padded.TextLength {
		t.Error("surrounding whitespace changed the length")
	}
}

func TestDigest_Deterministic(t *testing.T) {
	a := Digest("some content")
	b := Digest("some content")
	if a.TextHash != b.TextHash {
		t.Error("identical text produced different hashes")
	}
}

func TestDigest_Empty(t *testing.T) {
	// 空文本仍有确定摘要.
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	got := Digest("")
	if got.TextHash != emptySHA {
		t.Errorf("empty hash = %s, want %s", got.TextHash, emptySHA)
	}
	if got.TextLength != 0 || got.WordCount != 0 || got.LineCount != 0 {
		t.Errorf("empty stats = %+v, want zeros", got)
	}

	if onlySpace := Digest("   \n  "); onlySpace.TextHash != emptySHA {
		t.Error("whitespace-only text should normalize to empty")
	}
}

func TestDigest_MultilineAndUnicode(t *testing.T) {
	got := Digest("第一行\nsecond line\n第三行")

	if got.LineCount != 3 {
		t.Errorf("lines = %d, want 3", got.LineCount)
	}
	if got.WordCount != 4 {
		t.Errorf("words = %d, want 4", got.WordCount)
	}
	// 长度按 rune 计数.
	if got.TextLength != 19 {
		t.Errorf("length = %d, want 19", got.TextLength)
	}
}

func TestDigestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.txt")
	if err := os.WriteFile(path, []byte("  Hello, World!  "), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := DigestFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.TextHash != Digest("Hello, World!").TextHash {
		t.Error("file digest differs from direct digest")
	}

	if _, err := DigestFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
