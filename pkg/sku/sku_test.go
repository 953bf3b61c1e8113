package sku

import (
	"strings"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	a := Generate("user-1", "EPID123", "Vintage Camera\nWorks great")
	b := Generate("user-1", "EPID123", "Vintage Camera\nWorks great")
	if a != b {
		t.Errorf("same inputs produced different SKUs: %q vs %q", a, b)
	}
}

func TestGenerateDistinguishesInputs(t *testing.T) {
	base := Generate("user-1", "EPID123", "fingerprint")

	if got := Generate("user-2", "EPID123", "fingerprint"); got == base {
		t.Error("different owners produced the same SKU")
	}
	if got := Generate("user-1", "EPID999", "fingerprint"); got == base {
		t.Error("different catalog ids produced the same SKU")
	}
	if got := Generate("user-1", "EPID123", "other"); got == base {
		t.Error("different fingerprints produced the same SKU")
	}
}

func TestGenerateFormat(t *testing.T) {
	t.Run("with catalog id", func(t *testing.T) {
		s := Generate("owner", "EPID42", "content")
		parts := strings.Split(s, "-")
		if len(parts) != 4 {
			t.Fatalf("expected 4 segments, got %d: %q", len(parts), s)
		}
		if parts[0] != Prefix {
			t.Errorf("prefix = %q, want %q", parts[0], Prefix)
		}
		if len(parts[1]) != 8 {
			t.Errorf("owner hash length = %d, want 8", len(parts[1]))
		}
		if parts[2] != "EPID42" {
			t.Errorf("catalog segment = %q, want %q", parts[2], "EPID42")
		}
		if len(parts[3]) != 12 {
			t.Errorf("content hash length = %d, want 12", len(parts[3]))
		}
	})

	t.Run("without catalog id", func(t *testing.T) {
		s := Generate("owner", "", "content")
		parts := strings.Split(s, "-")
		if len(parts) != 3 {
			t.Fatalf("expected 3 segments, got %d: %q", len(parts), s)
		}
	})

	t.Run("catalog id is sanitized", func(t *testing.T) {
		s := Generate("owner", "EP/ID 42!", "content")
		if strings.Contains(s, "/") || strings.Contains(s, " ") || strings.Contains(s, "!") {
			t.Errorf("unsafe characters leaked into SKU: %q", s)
		}
	})

	t.Run("IsVersioned", func(t *testing.T) {
		if !IsVersioned(Generate("owner", "", "content")) {
			t.Error("generated SKU not recognized as versioned")
		}
		if IsVersioned("legacy-sku-1") {
			t.Error("legacy SKU misrecognized as versioned")
		}
	})
}
