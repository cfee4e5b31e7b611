package overlay

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const pdfHeader = "%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"

// allocator hands out object numbers for one render session. Numbers are
// strictly increasing and never reused.
type allocator struct {
	next int
}

func newAllocator() *allocator {
	return &allocator{next: 1}
}

func (a *allocator) alloc() types.IndirectRef {
	ref := types.IndirectRef{ObjectNumber: types.Integer(a.next)}
	a.next++
	return ref
}

// allocated returns how many object numbers have been handed out.
func (a *allocator) allocated() int {
	return a.next - 1
}

type entry struct {
	obj    types.Object
	stream []byte
	isStrm bool
}

// document is the in-memory object table of the overlay. Objects are keyed
// by object number and written in ascending order.
type document struct {
	objects map[int]entry
}

func newDocument() *document {
	return &document{objects: make(map[int]entry)}
}

func (d *document) put(ref types.IndirectRef, obj types.Object) {
	d.objects[int(ref.ObjectNumber)] = entry{obj: obj}
}

// putStream stores a stream object. Length is set from data.
func (d *document) putStream(ref types.IndirectRef, dict types.Dict, data []byte) {
	dict["Length"] = types.Integer(len(data))
	d.objects[int(ref.ObjectNumber)] = entry{obj: dict, stream: data, isStrm: true}
}

// bytes serialises the whole table with a classic cross-reference section.
// Every number up to size must have been stored.
func (d *document) bytes(root types.IndirectRef, size int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(pdfHeader)

	numbers := make([]int, 0, len(d.objects))
	for n := range d.objects {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	if len(numbers) != size {
		return nil, fmt.Errorf("object table holds %d objects, %d numbers allocated", len(numbers), size)
	}

	offsets := make([]int, size+1)
	for i, n := range numbers {
		if n != i+1 {
			return nil, fmt.Errorf("object %d was allocated but never written", i+1)
		}
		e := d.objects[n]
		offsets[n] = buf.Len()
		buf.WriteString(strconv.Itoa(n) + " 0 obj\n")
		if err := writeObject(&buf, e.obj); err != nil {
			return nil, fmt.Errorf("object %d: %w", n, err)
		}
		buf.WriteByte('\n')
		if e.isStrm {
			buf.WriteString("stream\n")
			buf.Write(e.stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
	}

	xref := buf.Len()
	buf.WriteString("xref\n")
	buf.WriteString("0 " + strconv.Itoa(size+1) + "\n")
	buf.WriteString("0000000000 65535 f \n")
	for n := 1; n <= size; n++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[n]))
	}
	buf.WriteString("trailer\n")
	trailer := types.Dict{
		"Size": types.Integer(size + 1),
		"Root": root,
	}
	if err := writeObject(&buf, trailer); err != nil {
		return nil, err
	}
	buf.WriteString("\nstartxref\n")
	buf.WriteString(strconv.Itoa(xref) + "\n")
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), nil
}

// writeObject renders obj in PDF syntax. Dictionary keys are written in
// sorted order so the output only depends on the object graph.
func writeObject(buf *bytes.Buffer, obj types.Object) error {
	switch o := obj.(type) {
	case nil:
		buf.WriteString("null")
	case types.Dict:
		keys := make([]string, 0, len(o))
		for k := range o {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteString("<<")
		for _, k := range keys {
			buf.WriteString(formatName(k))
			buf.WriteByte(' ')
			if err := writeObject(buf, o[k]); err != nil {
				return fmt.Errorf("key %s: %w", k, err)
			}
		}
		buf.WriteString(">>")
	case types.Array:
		buf.WriteByte('[')
		for i, v := range o {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, v); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case types.Name:
		buf.WriteString(formatName(string(o)))
	case types.Integer:
		buf.WriteString(strconv.Itoa(int(o)))
	case types.Float:
		buf.WriteString(formatNumber(float64(o)))
	case types.Boolean:
		buf.WriteString(strconv.FormatBool(bool(o)))
	case types.StringLiteral:
		buf.WriteString(literalString(string(o)))
	case types.IndirectRef:
		buf.WriteString(fmt.Sprintf("%d %d R", int(o.ObjectNumber), int(o.GenerationNumber)))
	case *types.IndirectRef:
		buf.WriteString(fmt.Sprintf("%d %d R", int(o.ObjectNumber), int(o.GenerationNumber)))
	default:
		return fmt.Errorf("unsupported object type %T", obj)
	}
	return nil
}

// formatName writes a name object, escaping delimiters and bytes outside
// the printable ASCII range as #xx.
func formatName(name string) string {
	var b bytes.Buffer
	b.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c < 0x21 || c > 0x7e, c == '#', c == '(', c == ')', c == '<', c == '>',
			c == '[', c == ']', c == '{', c == '}', c == '/', c == '%':
			b.WriteString(fmt.Sprintf("#%02X", c))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
