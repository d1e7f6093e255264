// Package dataset provides read access to converted echo sounder data files.
//
// The converter that produces echograms and their hourly companion files also
// emits this compact container alongside the vendor output: a msgpack document
// holding top-level attributes and variables plus named groups (hourly files
// keep their "Provenance" and "Beam" groups; the aggregate products are
// flattened and carry their variables at the top level). Consumers that need
// a different backing format can supply their own opener to the correlator.
package dataset

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// GroupData holds the attributes and variables of one named group.
type GroupData struct {
	Attrs map[string]string    `msgpack:"attributes"`
	Vars  map[string][]float64 `msgpack:"variables"`
}

// Data is the on-disk layout of a dataset container.
type Data struct {
	Attrs  map[string]string    `msgpack:"attributes"`
	Vars   map[string][]float64 `msgpack:"variables"`
	Groups map[string]GroupData `msgpack:"groups"`
}

// File is an open dataset container. Close must be called when done.
type File struct {
	path string
	f    *os.File
	data Data
}

// Group provides access to one named group of an open file.
type Group struct {
	file *File
	name string
	data GroupData
}

// Open opens and decodes the dataset container at path.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	file := &File{path: path, f: f}
	if err := msgpack.NewDecoder(f).Decode(&file.data); err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding dataset %s: %w", path, err)
	}

	return file, nil
}

// Close releases the underlying file handle.
func (f *File) Close() error {
	return f.f.Close()
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Attr returns a top-level attribute.
func (f *File) Attr(name string) (string, error) {
	v, ok := f.data.Attrs[name]
	if !ok {
		return "", fmt.Errorf("dataset %s: no attribute %q", f.path, name)
	}
	return v, nil
}

// Var returns a top-level variable.
func (f *File) Var(name string) ([]float64, error) {
	v, ok := f.data.Vars[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: no variable %q", f.path, name)
	}
	return v, nil
}

// Group returns the named group.
func (f *File) Group(name string) (*Group, error) {
	g, ok := f.data.Groups[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: no group %q", f.path, name)
	}
	return &Group{file: f, name: name, data: g}, nil
}

// Attr returns a group attribute.
func (g *Group) Attr(name string) (string, error) {
	v, ok := g.data.Attrs[name]
	if !ok {
		return "", fmt.Errorf("dataset %s: group %q has no attribute %q", g.file.path, g.name, name)
	}
	return v, nil
}

// Var returns a group variable.
func (g *Group) Var(name string) ([]float64, error) {
	v, ok := g.data.Vars[name]
	if !ok {
		return nil, fmt.Errorf("dataset %s: group %q has no variable %q", g.file.path, g.name, name)
	}
	return v, nil
}

// Write encodes d to a new container file at path.
// Used by the fixture builders and the offline converter, never by the correlator.
func Write(path string, d *Data) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := msgpack.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("encoding dataset %s: %w", path, err)
	}
	return nil
}
