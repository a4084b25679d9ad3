package model

// Building is a potential destination.
type Building struct {
	Label    TargetLabel `json:"name" yaml:"name"`
	Position Position    `json:"position" yaml:"position"`
}
