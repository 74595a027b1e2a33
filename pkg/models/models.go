package models

import (
	"math"
	"strings"
)

// Location represents a geographic location with latitude and longitude
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Valid reports whether the location is finite and inside the WGS84 range
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsNaN(l.Lon) || math.IsInf(l.Lat, 0) || math.IsInf(l.Lon, 0) {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lon >= -180 && l.Lon <= 180
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location `json:"bottom_left" yaml:"bottom_left"`
	TopRight   Location `json:"top_right" yaml:"top_right"`
}

// Center returns the midpoint of the box
func (b BoundingBox) Center() Location {
	return Location{
		Lat: (b.BottomLeft.Lat + b.TopRight.Lat) / 2,
		Lon: (b.BottomLeft.Lon + b.TopRight.Lon) / 2,
	}
}

// Viewport is the initial camera request for a map surface. Bounds wins over
// Center+Zoom when both are set.
type Viewport struct {
	Bounds *BoundingBox `json:"bounds,omitempty" yaml:"bounds,omitempty"`
	Center *Location    `json:"center,omitempty" yaml:"center,omitempty"`
	Zoom   float64      `json:"zoom,omitempty" yaml:"zoom,omitempty"`
}

// Media holds the descriptive record attached to a media point
type Media struct {
	Name                string   `json:"name,omitempty" yaml:"name,omitempty"`
	MediaType           string   `json:"media_type,omitempty" yaml:"media_type,omitempty"`
	Director            string   `json:"director,omitempty" yaml:"director,omitempty"`
	ReleaseYear         int      `json:"release_year,omitempty" yaml:"release_year,omitempty"`
	Description         string   `json:"description,omitempty" yaml:"description,omitempty"`
	Rights              string   `json:"rights,omitempty" yaml:"rights,omitempty"`
	RightsStatementLink string   `json:"rights_statement_link,omitempty" yaml:"rights_statement_link,omitempty"`
	VideoLink           string   `json:"video_link,omitempty" yaml:"video_link,omitempty"`
	ImageURL            string   `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Subjects            []string `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Language            []string `json:"language,omitempty" yaml:"language,omitempty"`
}

// MediaPoint is one geotagged media record
type MediaPoint struct {
	ID             string         `json:"id" yaml:"id"`
	Longitude      float64        `json:"longitude" yaml:"longitude"`
	Latitude       float64        `json:"latitude" yaml:"latitude"`
	City           string         `json:"city,omitempty" yaml:"city,omitempty"`
	Region         string         `json:"region,omitempty" yaml:"region,omitempty"`
	Country        string         `json:"country,omitempty" yaml:"country,omitempty"`
	NaturalFeature string         `json:"natural_feature_name,omitempty" yaml:"natural_feature_name,omitempty"`
	Media          *Media         `json:"media,omitempty" yaml:"media,omitempty"`
	Attributes     map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Location returns the point coordinate
func (p MediaPoint) Location() Location {
	return Location{Lat: p.Latitude, Lon: p.Longitude}
}

// Title returns the media name, falling back to the id
func (p MediaPoint) Title() string {
	if p.Media != nil && strings.TrimSpace(p.Media.Name) != "" {
		return p.Media.Name
	}
	return p.ID
}

// Properties flattens the record into feature properties. The id key is
// always present; opaque attributes never override the known fields.
func (p MediaPoint) Properties() map[string]any {
	props := make(map[string]any, len(p.Attributes)+16)
	for k, v := range p.Attributes {
		props[k] = v
	}
	props["id"] = p.ID
	props["longitude"] = p.Longitude
	props["latitude"] = p.Latitude
	setString(props, "city", p.City)
	setString(props, "region", p.Region)
	setString(props, "country", p.Country)
	setString(props, "natural_feature_name", p.NaturalFeature)
	if m := p.Media; m != nil {
		setString(props, "title", m.Name)
		setString(props, "media_type", m.MediaType)
		setString(props, "director", m.Director)
		setString(props, "description", m.Description)
		setString(props, "rights", m.Rights)
		setString(props, "rights_statement_link", m.RightsStatementLink)
		setString(props, "video_link", m.VideoLink)
		setString(props, "image_url", m.ImageURL)
		if m.ReleaseYear != 0 {
			props["release_year"] = m.ReleaseYear
		}
		if len(m.Subjects) > 0 {
			props["subjects"] = append([]string(nil), m.Subjects...)
		}
		if len(m.Language) > 0 {
			props["language"] = append([]string(nil), m.Language...)
		}
	}
	return props
}

func setString(props map[string]any, key, value string) {
	if value != "" {
		props[key] = value
	}
}
