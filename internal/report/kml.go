package report

import (
	"fmt"
	"io"
	"time"

	"backend-fieldroute/internal/stops"
	"backend-fieldroute/internal/tracking"

	"github.com/twpayne/go-kml"
)

const KMLContentType = "application/vnd.google-earth.kml+xml"

// WriteSessionKML renders the session track as a line and each stop as a
// point placemark.
func WriteSessionKML(w io.Writer, session tracking.Session, stopList []stops.Stop) error {
	coords := make([]kml.Coordinate, len(session.Points))
	for i, p := range session.Points {
		coords[i] = kml.Coordinate{Lon: p.Lng, Lat: p.Lat}
	}

	track := kml.Placemark(
		kml.Name("Pot"),
		kml.LineString(
			kml.Tessellate(true),
			kml.Coordinates(coords...),
		),
	)
	if len(session.Points) > 0 {
		end := session.Points[len(session.Points)-1].Timestamp
		if session.EndedAt != nil {
			end = *session.EndedAt
		}
		track.Add(kml.TimeSpan(kml.Begin(session.StartedAt), kml.End(end)))
	}

	stopFolder := kml.Folder(kml.Name("Postanki"))
	for _, st := range stopList {
		stopFolder.Add(kml.Placemark(
			kml.Name(st.City.Name),
			kml.Description(fmt.Sprintf("%s - %s (%d min)",
				st.ArrivalTime.Format(time.TimeOnly), st.DepartureTime.Format(time.TimeOnly), st.DurationMinutes)),
			kml.TimeSpan(kml.Begin(st.ArrivalTime), kml.End(st.DepartureTime)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: st.City.Lng, Lat: st.City.Lat})),
		))
	}

	doc := kml.KML(kml.Document(
		kml.Name("Seja "+session.ID),
		track,
		stopFolder,
	))
	return doc.WriteIndent(w, "", "  ")
}
