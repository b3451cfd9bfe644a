// Package params holds the codec parameter tables offered to the user when
// building a conversion: for each audio or video codec family an indexed
// list of (human label, ffmpeg flag fragment) pairs per setting.
//
// Tables are built once at package init and never mutated; every accessor
// returns copies.
package params

import (
	"strings"

	vmerrors "videomass/internal/errors"
)

// Option is one selectable entry of a table. Flag is the command line
// fragment contributed when the entry is picked; empty for "auto".
type Option struct {
	Label string `json:"label"`
	Flag  string `json:"flag"`
}

// Table is an immutable ordered list of options addressed by index.
type Table struct {
	name    string
	options []Option
}

func newTable(name string, options ...Option) *Table {
	return &Table{name: name, options: options}
}

// auto is the conventional index 0 entry that leaves ffmpeg's default alone.
var auto = Option{Label: "Auto", Flag: ""}

// Name identifies the table in error messages ("x264 preset").
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of options.
func (t *Table) Len() int {
	return len(t.options)
}

// Select returns the option at index.
func (t *Table) Select(index int) (Option, error) {
	if index < 0 || index >= len(t.options) {
		return Option{}, vmerrors.Validation("%s: index %d out of range [0,%d)", t.name, index, len(t.options))
	}
	return t.options[index], nil
}

// Labels returns the display labels in index order.
func (t *Table) Labels() []string {
	labels := make([]string, len(t.options))
	for i, o := range t.options {
		labels[i] = o.Label
	}
	return labels
}

// Options returns a copy of all options in index order.
func (t *Table) Options() []Option {
	out := make([]Option, len(t.options))
	copy(out, t.options)
	return out
}

// Find returns the index of the option with the given label (case
// insensitive), or -1.
func (t *Table) Find(label string) int {
	for i, o := range t.options {
		if strings.EqualFold(o.Label, label) {
			return i
		}
	}
	return -1
}

// Selection is an ordered list of picked options.
type Selection []Option

// Add selects index from table and appends it.
func (s Selection) Add(t *Table, index int) (Selection, error) {
	o, err := t.Select(index)
	if err != nil {
		return s, err
	}
	return append(s, o), nil
}

// Flags joins the non-empty flag fragments with single spaces.
func (s Selection) Flags() string {
	parts := make([]string, 0, len(s))
	for _, o := range s {
		if f := strings.TrimSpace(o.Flag); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Args splits Flags into argv form. Fragments never contain quoting.
func (s Selection) Args() []string {
	return strings.Fields(s.Flags())
}

// Labels returns the labels of the picked options.
func (s Selection) Labels() []string {
	labels := make([]string, len(s))
	for i, o := range s {
		labels[i] = o.Label
	}
	return labels
}

func normalize(codec string) string {
	return strings.ToLower(strings.TrimSpace(codec))
}
