// Package render provides output rendering for the framewire CLI.
//
// Format selection:
//   - If stdout is a TTY, default to table
//   - Otherwise default to json
//   - --format always overrides the default
//   - Invalid formats are errors
//
// Table output flattens nested structs into dotted keys
// (metrics.frames_delivered) so a run report reads as one list.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // caller decides the default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from the --format and --no-color flags.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}
	if format == "" {
		if IsTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}
	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     c.App.Writer,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{format: format, noColor: noColor, out: out}
}

// Format returns the selected format.
func (r *Renderer) Format() Format { return r.format }

// NoColor reports whether --no-color was set.
func (r *Renderer) NoColor() bool { return r.noColor }

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := deref(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		return renderRows(w, v)
	}

	var pairs [][2]string
	flatten("", v, &pairs)
	if len(pairs) == 0 {
		fmt.Fprintf(w, "%v\n", data)
		return nil
	}
	for _, p := range pairs {
		fmt.Fprintf(w, "%s:\t%s\n", p[0], p[1])
	}
	return nil
}

// renderRows prints one header row and one row per element.
func renderRows(w io.Writer, v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(w, "(no results)")
		return nil
	}

	var first [][2]string
	flatten("", deref(v.Index(0)), &first)
	if len(first) == 0 {
		for i := range v.Len() {
			fmt.Fprintln(w, formatScalar(v.Index(i)))
		}
		return nil
	}

	headers := make([]string, len(first))
	for i, p := range first {
		headers[i] = p[0]
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	for i := range v.Len() {
		var pairs [][2]string
		flatten("", deref(v.Index(i)), &pairs)
		byKey := make(map[string]string, len(pairs))
		for _, p := range pairs {
			byKey[p[0]] = p[1]
		}
		row := make([]string, len(headers))
		for j, h := range headers {
			row[j] = byKey[h]
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return nil
}

var timeType = reflect.TypeOf(time.Time{})

// flatten appends key/value pairs for structs and string-keyed maps.
// Scalars at the top level produce nothing.
func flatten(prefix string, v reflect.Value, out *[][2]string) {
	switch v.Kind() {
	case reflect.Struct:
		if v.Type() == timeType {
			*out = append(*out, [2]string{prefix, formatScalar(v)})
			return
		}
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			fv := deref(v.Field(i))
			if f.Anonymous && f.Tag.Get("json") == "" && fv.Kind() == reflect.Struct {
				flatten(prefix, fv, out)
				continue
			}
			name := fieldName(f)
			if name == "" {
				continue
			}
			flattenField(join(prefix, name), fv, out)
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		for _, k := range keys {
			flattenField(join(prefix, fmt.Sprint(k.Interface())), deref(v.MapIndex(k)), out)
		}
	}
}

func flattenField(key string, v reflect.Value, out *[][2]string) {
	switch {
	case !v.IsValid():
		*out = append(*out, [2]string{key, ""})
	case v.Kind() == reflect.Struct && v.Type() != timeType:
		flatten(key, v, out)
	case v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String && v.Len() > 0:
		flatten(key, v, out)
	default:
		*out = append(*out, [2]string{key, formatScalar(v)})
	}
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("json"); tag != "" {
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return strings.ToLower(f.Name)
}

func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func formatScalar(v reflect.Value) string {
	v = deref(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		if v.Len() <= 4 && v.Type().Elem().Kind() == reflect.String {
			parts := make([]string, v.Len())
			for i := range v.Len() {
				parts[i] = v.Index(i).String()
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if t, ok := v.Interface().(time.Time); ok {
			return t.Format(time.RFC3339)
		}
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// IsTTY returns true if f is a terminal.
func IsTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
