// Package id3 recognises ID3v2 tags so the pipeline's Container element can
// strip them from the head of an encoded stream before codec recognition.
package id3

// Stripper implements pipeline.ContainerStripper for ID3v2.2/2.3/2.4 tags.
type Stripper struct{}

func New() *Stripper { return &Stripper{} }

func (*Stripper) Name() string { return "ID3v2" }

const headerLen = 10

// TrySkip reports the total byte length of a leading ID3v2 tag, or 0 if the
// lookahead does not start with one. The tag size field is syncsafe: four
// bytes of 7 significant bits each.
func (*Stripper) TrySkip(lookahead []byte) int {
	if len(lookahead) < headerLen {
		return 0
	}
	if lookahead[0] != 'I' || lookahead[1] != 'D' || lookahead[2] != '3' {
		return 0
	}
	if lookahead[3] == 0xFF || lookahead[4] == 0xFF {
		return 0
	}
	size := 0
	for _, b := range lookahead[6:10] {
		if b&0x80 != 0 {
			return 0
		}
		size = size<<7 | int(b)
	}
	total := headerLen + size
	if lookahead[5]&0x10 != 0 {
		// Footer flag: a 10-byte footer mirrors the header after the tag.
		total += headerLen
	}
	return total
}
