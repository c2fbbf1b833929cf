// Package dat reads Logiqx and MAME XML DAT files into the arcade name and
// BIOS lookups used when resolving bulk ROM folders.
package dat

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Header represents the DAT file header element.
type Header struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
}

// Machine represents a game/machine entry in the DAT file.
// Supports both Logiqx DAT format and MAME XML format.
type Machine struct {
	Name         string `xml:"name,attr"`
	CloneOf      string `xml:"cloneof,attr"`
	RomOf        string `xml:"romof,attr"`
	Description  string `xml:"description"`
	Year         string `xml:"year"`
	Manufacturer string `xml:"manufacturer"`

	IsBIOS   string `xml:"isbios,attr"`   // "yes" or "no"
	IsDevice string `xml:"isdevice,attr"` // "yes" or "no"
	Runnable string `xml:"runnable,attr"` // "yes" or "no"
}

// File represents a parsed DAT file.
type File struct {
	Header   Header
	Machines []Machine
}

// ParseFile parses a DAT file from the given path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to open DAT file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse parses a DAT file from the given reader using streaming decoding;
// MAME full listings run to hundreds of megabytes.
func Parse(r io.Reader) (*File, error) {
	decoder := xml.NewDecoder(r)
	dat := &File{}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read XML token: %w", err)
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		switch elem.Name.Local {
		case "header":
			var header Header
			if err := decoder.DecodeElement(&header, &elem); err != nil {
				return nil, fmt.Errorf("failed to decode header: %w", err)
			}
			dat.Header = header

		case "game", "machine":
			var m Machine
			if err := decoder.DecodeElement(&m, &elem); err != nil {
				return nil, fmt.Errorf("failed to decode machine: %w", err)
			}
			dat.Machines = append(dat.Machines, m)
		}
	}

	return dat, nil
}
