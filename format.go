package sdt

import (
	"strings"
	"unicode/utf8"

	"github.com/KimNorgaard/go-sdt/internal/token"
)

// NoneString is how Format renders None.
const NoneString = "<None>"

// Format renders the root of c as an indented report. Instances whose map
// class is registered in c are shown with the class display names, in class
// key order; other instances show their raw keys. Format never modifies c.
func Format(c *Context, opts ...Option) string {
	if c == nil {
		return NoneString
	}
	o := newOptions(opts)
	f := newFormatter(o, c)
	f.writeValue(c.Root())
	return f.b.String()
}

// FormatValue renders v like Format. Map classes are looked up in the context
// given with WithContext, if any.
func FormatValue(v Value, opts ...Option) string {
	o := newOptions(opts)
	f := newFormatter(o, o.base)
	f.writeValue(v)
	return f.b.String()
}

// formatter writes the report for one value tree.
type formatter struct {
	b      strings.Builder
	indent string
	depth  int
	ctx    *Context
}

func newFormatter(o *options, ctx *Context) *formatter {
	return &formatter{indent: strings.Repeat(" ", o.indent), ctx: ctx}
}

type entry struct {
	label string
	value Value
}

func (f *formatter) write(s string) {
	f.b.WriteString(s)
}

func (f *formatter) writeIndent() {
	for i := 0; i < f.depth; i++ {
		f.write(f.indent)
	}
}

func (f *formatter) writeValue(v Value) {
	switch n := v.(type) {
	case nil, None:
		f.write(NoneString)
	case Scalar:
		f.write(string(n))
	case List:
		f.writeList(n)
	case *Map:
		f.writeEntries(mapEntries(n))
	case *Instance:
		f.writeInstance(n)
	}
}

func (f *formatter) writeList(l List) {
	if len(l) == 0 {
		f.write("[]")
		return
	}
	f.write("[\n")
	f.depth++
	for _, item := range l {
		f.writeIndent()
		f.writeValue(item)
		f.write("\n")
	}
	f.depth--
	f.writeIndent()
	f.write("]")
}

func (f *formatter) writeInstance(inst *Instance) {
	mc, ok := f.ctx.MapClass(inst.Class)
	if !ok {
		es := mapEntries(&inst.Map)
		es = append(es, entry{label: token.MapClassNameKey, value: Scalar(inst.Class)})
		f.writeEntries(es)
		return
	}

	es := make([]entry, 0, len(mc.Keys))
	for _, k := range mc.Keys {
		v, _ := inst.Get(k.Key)
		es = append(es, entry{label: k.Label(), value: v})
	}
	f.writeEntries(es)
}

// writeEntries writes one "label: value" line per entry with the labels
// padded to the width of the longest one.
func (f *formatter) writeEntries(es []entry) {
	if len(es) == 0 {
		f.write("{}")
		return
	}
	width := 0
	for _, e := range es {
		width = max(width, utf8.RuneCountInString(e.label))
	}

	f.write("{\n")
	f.depth++
	for _, e := range es {
		f.writeIndent()
		f.write(e.label)
		f.write(strings.Repeat(" ", width-utf8.RuneCountInString(e.label)))
		f.write(": ")
		f.writeValue(e.value)
		f.write("\n")
	}
	f.depth--
	f.writeIndent()
	f.write("}")
}

func mapEntries(m *Map) []entry {
	es := make([]entry, 0, m.Len())
	for k, v := range m.All() {
		es = append(es, entry{label: k, value: v})
	}
	return es
}
