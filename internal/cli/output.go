package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// OutputFormat is the value of --output.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// ParseOutputFormat maps a flag value to a format. Unknown values fall back
// to table.
func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(strings.ToLower(s)) {
	case OutputFormatJSON:
		return OutputFormatJSON
	case OutputFormatYAML, "yml":
		return OutputFormatYAML
	default:
		return OutputFormatTable
	}
}

// DataWriter renders command results as a table or as a JSON or YAML
// document.
type DataWriter struct {
	output io.Writer
	format OutputFormat
}

// NewDataWriter creates a writer for the --output value format.
func NewDataWriter(output io.Writer, format string) *DataWriter {
	return &DataWriter{output: output, format: ParseOutputFormat(format)}
}

// Structured reports whether results are written as documents rather than
// tables. Commands print their own human summaries only when it is false.
func (dw *DataWriter) Structured() bool {
	return dw.format != OutputFormatTable
}

// WriteStruct writes v as a document. JSON field tags decide the names in
// both JSON and YAML output.
func (dw *DataWriter) WriteStruct(v interface{}) error {
	switch dw.format {
	case OutputFormatJSON:
		enc := json.NewEncoder(dw.output)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputFormatYAML:
		return dw.writeYAML(v)
	default:
		return fmt.Errorf("%T has no table form; use --output json or yaml", v)
	}
}

// writeYAML goes through JSON so json tags apply, then re-emits the
// document in block style.
func (dw *DataWriter) writeYAML(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	blockStyle(&doc)

	enc := yaml.NewEncoder(dw.output)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// Table is a header row plus data rows. In JSON and YAML each row becomes
// an object keyed by header.
type Table struct {
	headers []string
	rows    [][]string
}

// NewTableBuilder starts a table with the given headers.
func NewTableBuilder(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row. Missing trailing cells are left empty.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// Write renders the table with dw.
func (t *Table) Write(dw *DataWriter) error {
	if dw.Structured() {
		objects := make([]map[string]string, 0, len(t.rows))
		for _, row := range t.rows {
			obj := make(map[string]string, len(t.headers))
			for i, h := range t.headers {
				if i < len(row) {
					obj[h] = row[i]
				}
			}
			objects = append(objects, obj)
		}
		return dw.WriteStruct(objects)
	}

	_, _ = fmt.Fprintln(dw.output)
	w := tabwriter.NewWriter(dw.output, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(t.headers, "\t")+"\t")
	for _, row := range t.rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t")+"\t")
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(dw.output)
	return nil
}

type field struct {
	key   string
	value interface{}
}

// KeyValues is a titled list of fields shown in insertion order.
type KeyValues struct {
	title  string
	fields []field
}

// NewKeyValueBuilder starts a key-value block.
func NewKeyValueBuilder(title string) *KeyValues {
	return &KeyValues{title: title}
}

// Add appends a field.
func (kv *KeyValues) Add(key string, value interface{}) *KeyValues {
	kv.fields = append(kv.fields, field{key: key, value: value})
	return kv
}

// AddIf appends a field when cond holds.
func (kv *KeyValues) AddIf(cond bool, key string, value interface{}) *KeyValues {
	if cond {
		return kv.Add(key, value)
	}
	return kv
}

// Write renders the block with dw. The table form skips empty values.
func (kv *KeyValues) Write(dw *DataWriter) error {
	if dw.Structured() {
		m := make(map[string]interface{}, len(kv.fields))
		for _, f := range kv.fields {
			m[f.key] = f.value
		}
		return dw.WriteStruct(m)
	}

	if kv.title != "" {
		_, _ = fmt.Fprintln(dw.output)
		_, _ = fmt.Fprintln(dw.output, kv.title)
	}
	w := tabwriter.NewWriter(dw.output, 0, 0, 2, ' ', 0)
	for _, f := range kv.fields {
		if f.value == nil || f.value == "" {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s:\t%v\t\n", f.key, f.value)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(dw.output)
	return nil
}
