// Package sumo reads the static scenario files shared with the traffic
// simulator: parking areas, users with their calendars and trips, and
// buildings.
package sumo

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/timectl"
)

// load opens path and hands it to read.
func load[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer f.Close()
	v, err := read(f)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func decode(r io.Reader, v any) error {
	return xml.NewDecoder(r).Decode(v)
}

type xmlParkingArea struct {
	ID               string     `xml:"id,attr"`
	Lane             string     `xml:"lane,attr"`
	RoadsideCapacity string     `xml:"roadsideCapacity,attr"`
	Spaces           []xmlSpace `xml:"space"`
}

type xmlSpace struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
}

type xmlAdditional struct {
	ParkingAreas []xmlParkingArea `xml:"parkingArea"`
}

// ReadParkingAreas parses an additional file. Capacity is the roadside
// capacity plus the number of explicit spaces; the position is the
// centroid of the spaces when there are any.
func ReadParkingAreas(r io.Reader) ([]model.ParkingArea, error) {
	var doc xmlAdditional
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("parse parking areas: %w", err)
	}
	out := make([]model.ParkingArea, 0, len(doc.ParkingAreas))
	for _, pa := range doc.ParkingAreas {
		if pa.ID == "" {
			return nil, fmt.Errorf("parking area without id")
		}
		capacity := 0
		if pa.RoadsideCapacity != "" {
			n, err := strconv.Atoi(pa.RoadsideCapacity)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("parking area %s: invalid roadsideCapacity %q", pa.ID, pa.RoadsideCapacity)
			}
			capacity = n
		}
		capacity += len(pa.Spaces)
		area := model.ParkingArea{ID: pa.ID, Lane: pa.Lane, Capacity: capacity}
		if len(pa.Spaces) > 0 {
			for _, s := range pa.Spaces {
				area.Position.Lon += s.X
				area.Position.Lat += s.Y
			}
			area.Position.Lon /= float64(len(pa.Spaces))
			area.Position.Lat /= float64(len(pa.Spaces))
		}
		out = append(out, area)
	}
	return out, nil
}

// LoadParkingAreas reads parkings.add.xml.
func LoadParkingAreas(path string) ([]model.ParkingArea, error) {
	return load(path, ReadParkingAreas)
}

type xmlBuildings struct {
	Buildings []struct {
		Name string  `xml:"name"`
		Lon  float64 `xml:"lon"`
		Lat  float64 `xml:"lat"`
	} `xml:"building"`
}

// ReadBuildings parses a buildings file.
func ReadBuildings(r io.Reader) ([]model.Building, error) {
	var doc xmlBuildings
	if err := decode(r, &doc); err != nil {
		return nil, fmt.Errorf("parse buildings: %w", err)
	}
	out := make([]model.Building, 0, len(doc.Buildings))
	for _, b := range doc.Buildings {
		if b.Name == "" {
			return nil, fmt.Errorf("building without name")
		}
		out = append(out, model.Building{
			Label:    model.TargetLabel(b.Name),
			Position: model.Position{Lat: b.Lat, Lon: b.Lon},
		})
	}
	return out, nil
}

// LoadBuildings reads buildings.xml.
func LoadBuildings(path string) ([]model.Building, error) {
	return load(path, ReadBuildings)
}

// Trip is a planned journey of a user to a building.
type Trip struct {
	ID     string            `xml:"id,attr"`
	Time   float64           `xml:"time,attr"`
	Target model.TargetLabel `xml:"target,attr"`
}

type xmlUsers struct {
	Users []struct {
		ID     int `xml:"id,attr"`
		Events []struct {
			Day   string `xml:"day,attr"`
			Time  int    `xml:"time,attr"`
			Place string `xml:"place,attr"`
		} `xml:"calendar>event"`
		Trips []Trip `xml:"trips>trip"`
	} `xml:"user"`
}

// Users is the content of users.xml.
type Users struct {
	Calendars map[int][]calendar.Entry
	// Trips is ordered by departure time.
	Trips []Trip
}

// Book builds the calendar book.
func (u Users) Book() *calendar.Book { return calendar.NewBook(u.Calendars) }

// TrueTarget returns the destination of a trip.
func (u Users) TrueTarget(tripID string) (model.TargetLabel, bool) {
	for _, t := range u.Trips {
		if t.ID == tripID {
			return t.Target, true
		}
	}
	return "", false
}

// Steps groups trips departing at or after start into simulation steps.
// Step times are relative to start.
func (u Users) Steps(start float64) []simfeed.Step {
	var steps []simfeed.Step
	for _, t := range u.Trips {
		if t.Time < start {
			continue
		}
		sim := t.Time - start
		if n := len(steps); n == 0 || steps[n-1].SimTime != sim {
			steps = append(steps, simfeed.Step{SimTime: sim})
		}
		last := &steps[len(steps)-1]
		last.Departures = append(last.Departures, simfeed.Departure{VehicleID: t.ID, TrueTarget: t.Target})
	}
	return steps
}

// ReadUsers parses a users file.
func ReadUsers(r io.Reader) (Users, error) {
	var doc xmlUsers
	if err := decode(r, &doc); err != nil {
		return Users{}, fmt.Errorf("parse users: %w", err)
	}
	u := Users{Calendars: make(map[int][]calendar.Entry, len(doc.Users))}
	for _, usr := range doc.Users {
		entries := make([]calendar.Entry, 0, len(usr.Events))
		for _, ev := range usr.Events {
			tow, err := timectl.TimeOfWeekFor(ev.Day, ev.Time)
			if err != nil {
				return Users{}, fmt.Errorf("user %d: %w", usr.ID, err)
			}
			entries = append(entries, calendar.Entry{Label: model.TargetLabel(ev.Place), TimeOfWeek: tow})
		}
		u.Calendars[usr.ID] = entries
		u.Trips = append(u.Trips, usr.Trips...)
	}
	sort.SliceStable(u.Trips, func(i, j int) bool { return u.Trips[i].Time < u.Trips[j].Time })
	return u, nil
}

// LoadUsers reads users.xml.
func LoadUsers(path string) (Users, error) {
	return load(path, ReadUsers)
}
