package gamesdb

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"github.com/ryanm101/romcatalog/internal/catalog"
)

// listXML is the GetGamesList.php response.
type listXML struct {
	XMLName xml.Name      `xml:"Data"`
	Games   []listGameXML `xml:"Game"`
}

type listGameXML struct {
	ID          string `xml:"id"`
	Title       string `xml:"GameTitle"`
	ReleaseDate string `xml:"ReleaseDate"`
	Platform    string `xml:"Platform"`
}

// gameXML is the GetGame.php response.
type gameXML struct {
	XMLName    xml.Name      `xml:"Data"`
	BaseImgURL string        `xml:"baseImgUrl"`
	Games      []gameFullXML `xml:"Game"`
}

type gameFullXML struct {
	ID          string   `xml:"id"`
	Title       string   `xml:"GameTitle"`
	PlatformID  string   `xml:"PlatformId"`
	Platform    string   `xml:"Platform"`
	ReleaseDate string   `xml:"ReleaseDate"`
	Overview    string   `xml:"Overview"`
	ESRB        string   `xml:"ESRB"`
	Genres      []string `xml:"Genres>genre"`
	Players     string   `xml:"Players"`
	Publisher   string   `xml:"Publisher"`
	Developer   string   `xml:"Developer"`
	Rating      string   `xml:"Rating"`
}

// platformXML is the GetPlatform.php response.
type platformXML struct {
	XMLName    xml.Name          `xml:"Data"`
	BaseImgURL string            `xml:"baseImgUrl"`
	Platforms  []platformFullXML `xml:"Platform"`
}

type platformFullXML struct {
	ID           string `xml:"id"`
	Name         string `xml:"Platform"`
	Overview     string `xml:"overview"`
	Developer    string `xml:"developer"`
	Manufacturer string `xml:"manufacturer"`
	Rating       string `xml:"Rating"`
}

// parseSearch decodes a search response.
func parseSearch(data []byte) ([]catalog.SearchResult, error) {
	var list listXML
	if err := xml.NewDecoder(bytes.NewReader(data)).Decode(&list); err != nil {
		return nil, err
	}
	results := make([]catalog.SearchResult, 0, len(list.Games))
	for _, g := range list.Games {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			continue
		}
		results = append(results, catalog.SearchResult{
			RemoteID:    id,
			Title:       strings.TrimSpace(g.Title),
			ReleaseYear: catalog.ParseYear(g.ReleaseDate),
		})
	}
	return results, nil
}

// LoadGame reads a cached GetGame.php document. A document without a game
// record yields catalog.ErrNoData; undecodable XML matches catalog.ErrParse.
func LoadGame(path string) (*catalog.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game document: %w", err)
	}

	var doc gameXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, catalog.ParseError(ProviderName, "load game", err)
	}
	if len(doc.Games) == 0 {
		return nil, catalog.ErrNoData
	}

	g := doc.Games[0]
	genres := make([]string, 0, len(g.Genres))
	for _, genre := range g.Genres {
		if genre = strings.TrimSpace(genre); genre != "" {
			genres = append(genres, genre)
		}
	}

	return &catalog.Document{
		Provider:    ProviderName,
		RemoteID:    strings.TrimSpace(g.ID),
		Title:       strings.TrimSpace(g.Title),
		ReleaseDate: strings.TrimSpace(g.ReleaseDate),
		Overview:    strings.TrimSpace(g.Overview),
		Rating:      strings.TrimSpace(g.ESRB),
		Genres:      genres,
		Developer:   strings.TrimSpace(g.Developer),
		Publisher:   strings.TrimSpace(g.Publisher),
		Players:     strings.TrimSpace(g.Players),
	}, nil
}

// LoadPlatform reads a cached GetPlatform.php document.
func LoadPlatform(path string) (*catalog.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read platform document: %w", err)
	}

	var doc platformXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, catalog.ParseError(PlatformProviderName, "load platform", err)
	}
	if len(doc.Platforms) == 0 {
		return nil, catalog.ErrNoData
	}

	p := doc.Platforms[0]
	return &catalog.Document{
		Provider:  PlatformProviderName,
		RemoteID:  strings.TrimSpace(p.ID),
		Title:     strings.TrimSpace(p.Name),
		Overview:  strings.TrimSpace(p.Overview),
		Developer: strings.TrimSpace(p.Developer),
		Publisher: strings.TrimSpace(p.Manufacturer),
	}, nil
}
