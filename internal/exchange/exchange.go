// Package exchange reads and writes portable document files. Imports are
// validated against an embedded JSON Schema before anything is written.
package exchange

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/model"
	"github.com/and161185/expense-keeper/internal/protocol"
)

// Format tags files this package understands.
const Format = "expense-keeper/v1"

// MaxFileSize bounds Decode input.
const MaxFileSize = 4 << 20

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://expense-keeper.local/schemas/export.schema.json"

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("export schema load failed: %w", err)
	}
	return c.Compile(schemaURL)
})

// File is the exported content of one document. Ownership, timestamps and
// the ACL stay with the source document.
type File struct {
	Format     string         `json:"format"`
	Title      string         `json:"title"`
	Headers    []model.Header `json:"headers"`
	Data       []model.Row    `json:"data"`
	ExportedAt time.Time      `json:"exportedAt"`
}

// Export captures e's content.
func Export(e model.Expense, at time.Time) File {
	c := e.Clone()
	if c.Headers == nil {
		c.Headers = []model.Header{}
	}
	if c.Data == nil {
		c.Data = []model.Row{}
	}
	return File{Format: Format, Title: c.Title, Headers: c.Headers, Data: c.Data, ExportedAt: at.UTC()}
}

// Encode writes f as indented JSON.
func Encode(w io.Writer, f File) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Decode reads and validates a file. Every rejection wraps errs.ErrInvalidArgument.
func Decode(r io.Reader) (File, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return File{}, err
	}
	if len(raw) > MaxFileSize {
		return File{}, fmt.Errorf("file exceeds %d bytes: %w", MaxFileSize, errs.ErrInvalidArgument)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return File{}, fmt.Errorf("parse: %v: %w", err, errs.ErrInvalidArgument)
	}
	schema, err := compiled()
	if err != nil {
		return File{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return File{}, fmt.Errorf("schema: %v: %w", err, errs.ErrInvalidArgument)
	}

	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return File{}, fmt.Errorf("decode: %v: %w", err, errs.ErrInvalidArgument)
	}
	if err := f.check(); err != nil {
		return File{}, fmt.Errorf("%v: %w", err, errs.ErrInvalidArgument)
	}
	return f, nil
}

// check enforces what the schema cannot express.
func (f File) check() error {
	keys := make(map[string]bool, len(f.Headers))
	sorted := 0
	for _, h := range f.Headers {
		if keys[h.Key] {
			return fmt.Errorf("duplicate column %q", h.Key)
		}
		keys[h.Key] = true
		if h.Sort != model.Unsorted {
			sorted++
		}
	}
	if sorted > 1 {
		return fmt.Errorf("%d columns are sorted, at most one may be", sorted)
	}
	ids := make(map[string]bool, len(f.Data))
	for _, r := range f.Data {
		if ids[r.ID()] {
			return fmt.Errorf("duplicate row id %q", r.ID())
		}
		ids[r.ID()] = true
	}
	return nil
}

// Import overwrites doc's title, headers and rows with f in one write.
func Import(ctx context.Context, c *protocol.Client, doc model.Expense, f File) protocol.Result[model.Expense] {
	return c.UpdateContent(ctx, doc, f.Title, f.Headers, f.Data)
}
