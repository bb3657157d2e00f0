package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/calvinalkan/docstore/pkg/codec"
	"github.com/calvinalkan/docstore/pkg/document"
	"github.com/calvinalkan/docstore/pkg/query"

	flag "github.com/spf13/pflag"
)

var errNoStdin = errors.New("no input available")

// InsertCmd returns the insert command.
func InsertCmd(a *app) *Command {
	fs := flag.NewFlagSet("insert", flag.ContinueOnError)
	fs.StringArrayP("field", "f", nil, "Field as name[:type]=value (repeatable; types: int, uint, float, text, bool)")
	fs.String("file", "", "Read the document from a file in storage format (- for stdin)")

	return &Command{
		Flags: fs,
		Usage: "insert <collection> [flags]",
		Short: "Insert a document, prints its id",
		Long: "Insert a document built from --file and/or --field flags. Fields are applied\n" +
			"on top of the file contents. A document without an id gets a new one.\n" +
			"Inserting a document whose id is already stored changes nothing and warns.",
		MinArgs: 1,
		Exec: func(_ context.Context, io *IO, args []string) error {
			fields, _ := fs.GetStringArray("field")
			file, _ := fs.GetString("file")

			return execInsert(io, a, args[0], file, fields)
		},
	}
}

func execInsert(o *IO, a *app, name, file string, fields []string) error {
	assignments, err := query.ParseAssignments(fields)
	if err != nil {
		return err
	}

	doc := document.New()

	if file != "" {
		doc, err = a.readDocument(file)
		if err != nil {
			return err
		}
	}

	err = query.Apply(doc, assignments...)
	if err != nil {
		return err
	}

	db, err := a.open()
	if err != nil {
		return err
	}

	id, inserted, err := db.Insert(name, doc)
	if err != nil {
		return err
	}

	if !inserted {
		o.Warn(fmt.Sprintf("document %d already exists in %s", id, name), "use update to change it")
	}

	o.Println(id)

	return nil
}

// readDocument parses a document in storage format from path, or from
// stdin when path is "-".
func (a *app) readDocument(path string) (*document.Document, error) {
	var (
		data []byte
		err  error
	)

	if path == "-" {
		if a.in == nil {
			return nil, errNoStdin
		}

		data, err = io.ReadAll(a.in)
	} else {
		if !filepath.IsAbs(path) {
			path = filepath.Join(a.cfg.EffectiveCwd, path)
		}

		data, err = os.ReadFile(path)
	}

	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := codec.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	return doc, nil
}
