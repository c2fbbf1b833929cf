package gamesdb

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ryanm101/romcatalog/internal/catalog"
	"github.com/ryanm101/romcatalog/internal/library"
)

// DocumentKind tells the extractor which document it reads.
type DocumentKind int

const (
	KindGame DocumentKind = iota
	KindPlatform
)

// imageXML covers both image shapes: text content with size attributes
// (boxart, banner, clearlogo) and a nested <original> (fanart, screenshot).
type imageXML struct {
	Side     string    `xml:"side,attr"`
	Width    string    `xml:"width,attr"`
	Height   string    `xml:"height,attr"`
	Text     string    `xml:",chardata"`
	Original *imageXML `xml:"original"`
}

// ExtractImages lists the images of a game or platform document in
// document order. Relative paths are joined with the document's
// baseImgUrl. Unknown image elements are skipped.
//
// Platform documents file their cover art under side="back"; for
// KindPlatform that side maps to Primary.
func ExtractImages(r io.Reader, kind DocumentKind) ([]library.ImageRef, error) {
	dec := xml.NewDecoder(r)

	var (
		base     string
		refs     []library.ImageRef
		inImages bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, catalog.ParseError(ProviderName, "images", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inImages {
				switch t.Name.Local {
				case "baseImgUrl":
					if err := dec.DecodeElement(&base, &t); err != nil {
						return nil, catalog.ParseError(ProviderName, "images", err)
					}
				case "Images":
					inImages = true
				}
				continue
			}

			category, ok := imageCategory(t.Name.Local)
			if !ok {
				if err := dec.Skip(); err != nil {
					return nil, catalog.ParseError(ProviderName, "images", err)
				}
				continue
			}
			var img imageXML
			if err := dec.DecodeElement(&img, &t); err != nil {
				return nil, catalog.ParseError(ProviderName, "images", err)
			}
			if category == library.ImagePrimary {
				category, ok = boxartCategory(img.Side, kind)
				if !ok {
					continue
				}
			}
			if ref, ok := img.ref(category); ok {
				refs = append(refs, ref)
			}

		case xml.EndElement:
			if t.Name.Local == "Images" {
				inImages = false
			}
		}
	}

	base = strings.TrimSpace(base)
	for i := range refs {
		refs[i].URL = joinURL(base, refs[i].URL)
	}
	return refs, nil
}

// ExtractImagesFile is ExtractImages over a cached document.
func ExtractImagesFile(path string, kind DocumentKind) ([]library.ImageRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ExtractImages(f, kind)
}

// imageCategory maps an image element name. boxart reports Primary and is
// refined by its side attribute.
func imageCategory(element string) (library.ImageCategory, bool) {
	switch element {
	case "boxart":
		return library.ImagePrimary, true
	case "banner":
		return library.ImageBanner, true
	case "clearlogo":
		return library.ImageLogo, true
	case "fanart":
		return library.ImageBackdrop, true
	case "screenshot":
		return library.ImageScreenshot, true
	case "cabinet":
		return library.ImageCabinet, true
	default:
		return "", false
	}
}

func boxartCategory(side string, kind DocumentKind) (library.ImageCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "front":
		return library.ImagePrimary, true
	case "back":
		if kind == KindPlatform {
			return library.ImagePrimary, true
		}
		return library.ImageBoxRear, true
	default:
		return "", false
	}
}

func (img imageXML) ref(category library.ImageCategory) (library.ImageRef, bool) {
	src := img
	if strings.TrimSpace(src.Text) == "" && src.Original != nil {
		src = *src.Original
	}
	path := strings.TrimSpace(src.Text)
	if path == "" {
		return library.ImageRef{}, false
	}
	return library.ImageRef{
		Category: category,
		Width:    atoi(src.Width),
		Height:   atoi(src.Height),
		URL:      path,
		Provider: library.ProviderGamesDB,
	}, true
}

func joinURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
