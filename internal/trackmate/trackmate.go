// Package trackmate reads TrackMate XML exports into the spindle data
// model. Only the features the pairing engine consumes are decoded; the
// rest of the document is ignored.
package trackmate

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"

	"github.com/mitosis-data/spindle.report/internal/spindle"
)

// Meta carries the export's image settings. FrameInterval is the seconds
// between frames ("framerate" in the original tooling), used to convert
// congression sample counts into durations.
type Meta struct {
	SpatialUnits  string
	TimeUnits     string
	FrameInterval float64
	Width         int // pixels
	Height        int // pixels
	PixelWidth    float64
	NFrames       int
}

type xmlSpot struct {
	ID           int     `xml:"ID,attr"`
	PositionX    float64 `xml:"POSITION_X,attr"`
	PositionY    float64 `xml:"POSITION_Y,attr"`
	PositionZ    float64 `xml:"POSITION_Z,attr"`
	Diameter     float64 `xml:"ESTIMATED_DIAMETER,attr"`
	MaxIntensity float64 `xml:"MAX_INTENSITY,attr"`
	Contrast     float64 `xml:"CONTRAST,attr"`
}

type xmlEdge struct {
	SourceID int     `xml:"SPOT_SOURCE_ID,attr"`
	TargetID int     `xml:"SPOT_TARGET_ID,attr"`
	Time     float64 `xml:"EDGE_TIME,attr"`
}

type xmlTrack struct {
	ID       int       `xml:"TRACK_ID,attr"`
	X        float64   `xml:"TRACK_X_LOCATION,attr"`
	Y        float64   `xml:"TRACK_Y_LOCATION,attr"`
	Z        float64   `xml:"TRACK_Z_LOCATION,attr"`
	Start    float64   `xml:"TRACK_START,attr"`
	Stop     float64   `xml:"TRACK_STOP,attr"`
	Duration float64   `xml:"TRACK_DURATION,attr"`
	Edges    []xmlEdge `xml:"Edge"`
}

type xmlDoc struct {
	Model struct {
		SpatialUnits string `xml:"spatialunits,attr"`
		TimeUnits    string `xml:"timeunits,attr"`
		AllSpots     struct {
			Frames []struct {
				Spots []xmlSpot `xml:"Spot"`
			} `xml:"SpotsInFrame"`
		} `xml:"AllSpots"`
		AllTracks struct {
			Tracks []xmlTrack `xml:"Track"`
		} `xml:"AllTracks"`
	} `xml:"Model"`
	Settings struct {
		ImageData struct {
			Width         int     `xml:"width,attr"`
			Height        int     `xml:"height,attr"`
			PixelWidth    float64 `xml:"pixelwidth,attr"`
			NFrames       int     `xml:"nframes,attr"`
			FrameInterval float64 `xml:"timeinterval,attr"`
		} `xml:"ImageData"`
	} `xml:"Settings"`
}

// Parse decodes a TrackMate export and builds the arena: spots keyed by id,
// tracks keyed by id, and the per-track frame index derived from edges
// (frame = truncated EDGE_TIME, keyed to the edge's source spot). Track
// photometric summaries are computed before returning.
func Parse(r io.Reader) (*spindle.Arena, Meta, error) {
	var doc xmlDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, Meta{}, fmt.Errorf("decode trackmate xml: %w", err)
	}

	a := spindle.NewArena()
	for _, frame := range doc.Model.AllSpots.Frames {
		for _, s := range frame.Spots {
			a.Spots[s.ID] = &spindle.Spot{
				ID:           s.ID,
				Pos:          spindle.Vec3{X: s.PositionX, Y: s.PositionY, Z: s.PositionZ},
				Diameter:     s.Diameter,
				MaxIntensity: s.MaxIntensity,
				Contrast:     s.Contrast,
			}
		}
	}
	for _, trk := range doc.Model.AllTracks.Tracks {
		a.Tracks[trk.ID] = &spindle.Track{
			ID:       trk.ID,
			Pos:      spindle.Vec3{X: trk.X, Y: trk.Y, Z: trk.Z},
			Start:    trk.Start,
			Stop:     trk.Stop,
			Duration: trk.Duration,
		}
		idx := spindle.TimeIndex{}
		for _, e := range trk.Edges {
			idx[int(e.Time)] = e.SourceID
		}
		a.Index[trk.ID] = idx
	}
	if err := a.Validate(); err != nil {
		return nil, Meta{}, fmt.Errorf("trackmate export is inconsistent: %w", err)
	}
	a.SummarizeTracks()

	img := doc.Settings.ImageData
	meta := Meta{
		SpatialUnits:  doc.Model.SpatialUnits,
		TimeUnits:     doc.Model.TimeUnits,
		FrameInterval: img.FrameInterval,
		Width:         img.Width,
		Height:        img.Height,
		PixelWidth:    img.PixelWidth,
		NFrames:       img.NFrames,
	}
	return a, meta, nil
}

// ParseFile is Parse over a file on disk.
func ParseFile(path string) (*spindle.Arena, Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open trackmate xml: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
