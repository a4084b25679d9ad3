// Package scenarios replays scripted departures through the guidance loop
// against an in-memory city.
package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/parkadvisor/core/calendar"
	"github.com/kilianp07/parkadvisor/core/model"
	"github.com/kilianp07/parkadvisor/core/simfeed"
	"github.com/kilianp07/parkadvisor/core/timectl"
	"github.com/kilianp07/parkadvisor/core/weights"
)

type StartDef struct {
	Week int    `yaml:"week"`
	Day  int    `yaml:"day"`
	Time string `yaml:"time"`
}

type ParkingDef struct {
	model.ParkingArea `yaml:",inline"`
	Occupancy         int `yaml:"occupancy"`
}

type EventDef struct {
	Place string `yaml:"place"`
	Day   string `yaml:"day"`
	Time  string `yaml:"time"`
}

func (e EventDef) ToEntry() (calendar.Entry, error) {
	secs, err := timectl.ParseTimeOfDay(e.Time)
	if err != nil {
		return calendar.Entry{}, err
	}
	tow, err := timectl.TimeOfWeekFor(e.Day, secs)
	if err != nil {
		return calendar.Entry{}, err
	}
	return calendar.Entry{Label: model.TargetLabel(e.Place), TimeOfWeek: tow}, nil
}

type Expected struct {
	Guided   int `yaml:"guided"`
	Reserved int `yaml:"reserved"`
	Failed   int `yaml:"failed"`
	// Reservations maps vehicle ids to the area they must end up in.
	Reservations map[string]string `yaml:"reservations,omitempty"`
}

type Scenario struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description,omitempty"`
	Start       StartDef                  `yaml:"start"`
	Buildings   []model.Building          `yaml:"buildings"`
	Parkings    []ParkingDef              `yaml:"parkings"`
	Calendars   map[int][]EventDef        `yaml:"calendars,omitempty"`
	Weights     weights.File              `yaml:"weights,omitempty"`
	Vehicles    map[string]model.Position `yaml:"vehicles"`
	Rejects     []string                  `yaml:"rejects,omitempty"`
	Steps       []simfeed.Step            `yaml:"steps"`
	Expected    Expected                  `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Start.Week == 0 {
		sc.Start.Week = 1
	}
	if sc.Start.Day == 0 {
		sc.Start.Day = 1
	}
	if sc.Start.Time == "" {
		sc.Start.Time = "08:00"
	}
	return &sc, nil
}

// Areas returns the static parking areas of the scenario.
func (s *Scenario) Areas() []model.ParkingArea {
	out := make([]model.ParkingArea, len(s.Parkings))
	for i, p := range s.Parkings {
		out[i] = p.ParkingArea
	}
	return out
}

// Book builds the calendar book of the scenario.
func (s *Scenario) Book() (*calendar.Book, error) {
	entries := make(map[int][]calendar.Entry, len(s.Calendars))
	for user, evs := range s.Calendars {
		for _, ev := range evs {
			e, err := ev.ToEntry()
			if err != nil {
				return nil, fmt.Errorf("user %d: %w", user, err)
			}
			entries[user] = append(entries[user], e)
		}
	}
	return calendar.NewBook(entries), nil
}

// Feed builds an in-process simulator feed seeded with the scenario state.
func (s *Scenario) Feed() *simfeed.Static {
	feed := simfeed.NewStatic(s.Areas())
	for _, p := range s.Parkings {
		if p.Occupancy > 0 {
			feed.SetOccupancy(p.ID, p.Occupancy)
		}
	}
	for id, pos := range s.Vehicles {
		feed.SetPosition(id, pos)
	}
	for _, id := range s.Rejects {
		feed.Reject[id] = true
	}
	return feed
}
