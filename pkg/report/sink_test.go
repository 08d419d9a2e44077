package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPSDocumentAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.ps")
	doc := NewPSDocument(path)

	if err := doc.Append([]byte("0 0 0 setrgbcolor")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if err := doc.Append([]byte("1 1 1 setrgbcolor\n")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}
	if doc.Pages() != 2 {
		t.Errorf("Pages() = %d, want 2", doc.Pages())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	content := string(data)

	// The DSC header is written exactly once, at the top.
	if !strings.HasPrefix(content, "%!PS-Adobe-3.0\n") {
		t.Error("document does not start with the DSC header")
	}
	if strings.Count(content, "%!PS-Adobe-3.0") != 1 {
		t.Error("DSC header written more than once")
	}

	// Pages appear in append order with monotonic numbering.
	if got := bytes.Count(data, []byte("%%Page:")); got != 2 {
		t.Errorf("document has %d page markers, want 2", got)
	}
	p1 := strings.Index(content, "%%Page: 1 1")
	p2 := strings.Index(content, "%%Page: 2 2")
	if p1 < 0 || p2 < 0 || p2 < p1 {
		t.Errorf("page markers missing or out of order (p1=%d, p2=%d)", p1, p2)
	}
	if strings.Count(content, "showpage") != 2 {
		t.Errorf("showpage count = %d, want 2", strings.Count(content, "showpage"))
	}

	// Page bodies land between the markers, in call order.
	if !(strings.Index(content, "0 0 0 setrgbcolor") < strings.Index(content, "1 1 1 setrgbcolor")) {
		t.Error("page bodies not in append order")
	}
}

func TestPSDocumentExtendsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.ps")

	first := NewPSDocument(path)
	if err := first.Append([]byte("% page one")); err != nil {
		t.Fatal(err)
	}

	// A fresh sink instance for the same file continues the numbering.
	second := NewPSDocument(path)
	if err := second.Append([]byte("% page two")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "%%Page: 2 2") {
		t.Error("second run did not continue page numbering")
	}
	if strings.Count(string(data), "%!PS-Adobe-3.0") != 1 {
		t.Error("second run rewrote the DSC header")
	}
}

func TestPSDocumentRelativePath(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })

	doc := NewPSDocument("report.ps")
	if err := doc.Append([]byte("% body")); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	// The document resolves against the directory current at Append time.
	if _, err := os.Stat(filepath.Join(dir, "report.ps")); err != nil {
		t.Errorf("document not written into the working directory: %v", err)
	}
}
