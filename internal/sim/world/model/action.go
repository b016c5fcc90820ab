package model

type Verb string

const (
	VerbMove    Verb = "move"
	VerbHarvest Verb = "harvest"
	VerbUpgrade Verb = "upgradeController"
	VerbSpawn   Verb = "spawnCreep"
)

// Action is a validated command waiting for the end-of-tick resolution pass. An object holds
// at most one; recording a new one replaces the previous.
type Action struct {
	Verb   Verb       `json:"verb"`
	Dir    Direction  `json:"dir,omitempty"`
	Target string     `json:"target,omitempty"`
	Body   []BodyPart `json:"body,omitempty"`
	Name   string     `json:"name,omitempty"`
}
