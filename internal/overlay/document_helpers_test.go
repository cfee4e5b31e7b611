package overlay

import "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

// lookup returns the object stored under ref and, for streams, its data.
func (d *document) lookup(ref types.IndirectRef) (types.Object, []byte, bool) {
	e, ok := d.objects[int(ref.ObjectNumber)]
	return e.obj, e.stream, ok
}
