package weights

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/parkadvisor/core/model"
)

// File is the serialised form of a table.
type File struct {
	Factors map[Factor][]Level `json:"factors" yaml:"factors"`
}

// Load reads a table from a YAML, JSON or XML file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return Decode(f, ext)
}

// Decode reads a table from r in the given format.
func Decode(r io.Reader, format string) (*Table, error) {
	var file File
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&file); err != nil {
			return nil, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&file); err != nil {
			return nil, err
		}
	case "xml":
		levels, err := decodeXML(r)
		if err != nil {
			return nil, err
		}
		file.Factors = levels
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	return NewTable(file.Factors)
}

// xmlWeights mirrors the simulator's weights.xml layout:
// <weights><factor id=".."><level upperThreshold=".."><weight id=".." value=".."/>
type xmlWeights struct {
	Factors []struct {
		ID     string `xml:"id,attr"`
		Levels []struct {
			UpperThreshold string `xml:"upperThreshold,attr"`
			Weights        []struct {
				ID    string  `xml:"id,attr"`
				Value float64 `xml:"value,attr"`
			} `xml:"weight"`
		} `xml:"level"`
	} `xml:"factor"`
}

func decodeXML(r io.Reader) (map[Factor][]Level, error) {
	var doc xmlWeights
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	out := make(map[Factor][]Level, len(doc.Factors))
	for _, f := range doc.Factors {
		for _, l := range f.Levels {
			th, err := strconv.ParseFloat(strings.TrimSpace(l.UpperThreshold), 64)
			if err != nil {
				return nil, fmt.Errorf("factor %s: threshold %q: %w", f.ID, l.UpperThreshold, err)
			}
			var w model.WeightTriple
			for _, wt := range l.Weights {
				switch wt.ID {
				case "totalTime":
					w.Time = wt.Value
				case "walkingTime":
					w.Walking = wt.Value
				case "probOfSuccess":
					w.Success = wt.Value
				default:
					return nil, fmt.Errorf("factor %s: unknown weight %q", f.ID, wt.ID)
				}
			}
			out[Factor(f.ID)] = append(out[Factor(f.ID)], Level{UpperThreshold: th, Weights: w})
		}
	}
	return out, nil
}
