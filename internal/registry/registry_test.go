package registry

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "instruments.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
instruments:
  - key: spx
    kind: index
    name: S&P 500
    currency: USD
    identifiers:
      stooq: ^spx
      yahoo: ^GSPC
  - key: ftse
    kind: index
    name: FTSE 100
    currency: GBP
    scale: 0.01
    identifiers:
      stooq: ^ftm
`)
	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 instruments, got %d", reg.Len())
	}

	spx, ok := reg.Get("spx")
	if !ok {
		t.Fatal("spx not found")
	}
	if spx.Identifiers["yahoo"] != "^GSPC" {
		t.Errorf("unexpected yahoo identifier: %q", spx.Identifiers["yahoo"])
	}
	if spx.PriceScale() != 1 {
		t.Errorf("default scale should be 1, got %v", spx.PriceScale())
	}

	ftse, _ := reg.Get("ftse")
	if ftse.PriceScale() != 0.01 {
		t.Errorf("expected scale 0.01, got %v", ftse.PriceScale())
	}

	insts := reg.Instruments()
	if insts[0].Key != "spx" || insts[1].Key != "ftse" {
		t.Errorf("file order not preserved: %v, %v", insts[0].Key, insts[1].Key)
	}
}

func TestLoadRejectsDuplicateKey(t *testing.T) {
	path := writeFile(t, `
instruments:
  - key: spx
    identifiers: {stooq: ^spx}
  - key: spx
    identifiers: {yahoo: ^GSPC}
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for duplicate key")
	}
}

func TestLoadRejectsMissingIdentifiers(t *testing.T) {
	path := writeFile(t, `
instruments:
  - key: spx
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for instrument without identifiers")
	}
}

func TestLoadRejectsEmptyUniverse(t *testing.T) {
	path := writeFile(t, "instruments: []\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty universe")
	}
}
