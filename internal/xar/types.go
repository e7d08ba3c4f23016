package xar

import "encoding/xml"

// doc is the root <xar> element produced by `xar -d - -f <archive>`: it
// carries a <subdoc> metadata block and a <toc> file listing as direct
// children.
type doc struct {
	XMLName xml.Name `xml:"xar"`
	Subdoc  Subdoc   `xml:"subdoc"`
	Files   []File   `xml:"toc>file"`
}

// File is one <file> entry in the TOC: its logical name, its
// file-type (Bitcode, Object, Bundle, or LTO), and, for Bitcode
// entries, the embedded <clang> or <swift> frontend invocation.
type File struct {
	Name     string    `xml:"name"`
	FileType string    `xml:"file-type"`
	Clang    *Frontend `xml:"clang"`
	Swift    *Frontend `xml:"swift"`
}

// Frontend is a <clang> or <swift> element: a sequence of <cmd>
// elements, each one argument of the embedded frontend invocation.
type Frontend struct {
	Cmd []string `xml:"cmd"`
}

// Subdoc is the bundle's <subdoc> metadata block: platform, SDK and
// bundle-format version, link options, and symbol/dylib handling
// flags.
type Subdoc struct {
	Platform    string      `xml:"platform"`
	SDKVersion  string      `xml:"sdkversion"`
	Version     string      `xml:"version"`
	HideSymbols *string     `xml:"hide-symbols"`
	RTForceload *string     `xml:"rt-forceload"`
	LinkOptions LinkOptions `xml:"link-options"`
	Dylibs      *Dylibs     `xml:"dylibs"`
}

// LinkOptions is the <link-options> element: an ordered list of
// <option> text values, some of which may be empty.
type LinkOptions struct {
	Option []string `xml:"option"`
}

// Dylibs is the <dylibs> element: an interleaved sequence of <lib> (a
// hard dependency) and <weak> (an optional framework that may be
// missing) entries. A single xml struct tag cannot preserve the
// interleaving order of two differently-named sibling elements, so
// Entries is populated by a custom UnmarshalXML that walks the
// element's children in document order.
type Dylibs struct {
	Entries []DylibEntry
}

// DylibEntry is one <lib> or <weak> child of <dylibs>.
type DylibEntry struct {
	Weak bool
	Path string
}

// UnmarshalXML decodes a <dylibs> element's <lib> and <weak> children
// in document order.
func (d *Dylibs) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var text string
			if err := dec.DecodeElement(&text, &t); err != nil {
				return err
			}
			switch t.Name.Local {
			case "lib":
				d.Entries = append(d.Entries, DylibEntry{Weak: false, Path: text})
			case "weak":
				d.Entries = append(d.Entries, DylibEntry{Weak: true, Path: text})
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// ContainsSymbols reports whether the bundle should keep its symbols,
// absent <hide-symbols> defaults to true (keep symbols); "0" also
// means keep.
func (s Subdoc) ContainsSymbols() bool {
	if s.HideSymbols == nil {
		return true
	}
	return *s.HideSymbols == "0"
}

// ForceloadCompilerRT reports whether the linker must -force_load the
// compiler-rt archive.
func (s Subdoc) ForceloadCompilerRT() bool {
	return s.RTForceload != nil && *s.RTForceload == "1"
}
