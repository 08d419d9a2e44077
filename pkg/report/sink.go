package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/neuroglm/physioreport/pkg/buildinfo"
	"github.com/neuroglm/physioreport/pkg/errors"
)

// Sink appends rendered pages to a single output document. Repeated calls
// within one run land in the same document, in call order, without touching
// pages already written.
type Sink interface {
	Append(page []byte) error
}

// PSDocument is the default sink: a multi-page PostScript document. The
// configured path is resolved against the current working directory at each
// Append, which is why the pipeline changes into the document's directory
// around sink calls. The document is opened, extended and closed per call,
// so a partial run leaves a valid document containing every page appended
// so far.
type PSDocument struct {
	Path  string
	pages int
}

// NewPSDocument creates a PostScript document sink for the given path.
func NewPSDocument(path string) *PSDocument {
	return &PSDocument{Path: path}
}

// Pages returns the number of pages appended through this sink instance.
func (d *PSDocument) Pages() int {
	return d.pages
}

// Append adds one page to the document, creating it with a DSC header on
// first use. An existing document is extended; its page count is recovered
// by scanning for page markers so numbering stays monotonic across runs.
func (d *PSDocument) Append(page []byte) error {
	existing, err := os.ReadFile(d.Path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeSinkFailed, err, "open report %s", d.Path)
	}

	var buf bytes.Buffer
	pageNum := bytes.Count(existing, []byte("%%Page:")) + 1
	if len(existing) == 0 {
		fmt.Fprintf(&buf, "%%!PS-Adobe-3.0\n")
		fmt.Fprintf(&buf, "%%%%Creator: physioreport %s\n", buildinfo.Version)
		fmt.Fprintf(&buf, "%%%%Pages: (atend)\n")
		fmt.Fprintf(&buf, "%%%%BoundingBox: 0 0 %d %d\n", int(pageWidth), int(pageHeight))
		fmt.Fprintf(&buf, "%%%%EndComments\n")
	}
	fmt.Fprintf(&buf, "%%%%Page: %d %d\nsave\n", pageNum, pageNum)
	buf.Write(page)
	if len(page) > 0 && page[len(page)-1] != '\n' {
		buf.WriteByte('\n')
	}
	buf.WriteString("restore\nshowpage\n")

	f, err := os.OpenFile(d.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSinkFailed, err, "open report %s", d.Path)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return errors.Wrap(errors.ErrCodeSinkFailed, err, "append page to %s", d.Path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeSinkFailed, err, "close report %s", d.Path)
	}

	d.pages++
	return nil
}

// Ensure PSDocument implements Sink.
var _ Sink = (*PSDocument)(nil)
