package sensor

import (
	"fmt"
	"strings"

	"fortnite-tracker/internal/domain"
)

const StateClassMeasurement = "measurement"

// Reader is the read side of the coordinator.
type Reader interface {
	Read(player string, key domain.StatKey) (float64, bool)
}

type statMeta struct {
	Key   domain.StatKey
	Label string
	Icon  string
	Unit  string
}

var stats = []statMeta{
	{domain.StatWins, "Wins", "mdi:trophy", "wins"},
	{domain.StatKills, "Kills", "mdi:target", "kills"},
	{domain.StatDeaths, "Deaths", "mdi:skull", "deaths"},
	{domain.StatKD, "KD Ratio", "mdi:calculator", "KD"},
	{domain.StatMatches, "Matches", "mdi:controller-classic", "matches"},
}

// Sensor exposes one statistic of one player.
type Sensor struct {
	UniqueID   string         `json:"unique_id"`
	Name       string         `json:"name"`
	Player     string         `json:"player"`
	Key        domain.StatKey `json:"key"`
	Icon       string         `json:"icon"`
	Unit       string         `json:"unit"`
	StateClass string         `json:"state_class"`

	reader Reader
}

// Value is the current reading, or nil before the player's first fetch.
func (s *Sensor) Value() *float64 {
	v, ok := s.reader.Read(s.Player, s.Key)
	if !ok {
		return nil
	}
	return &v
}

// State pairs a sensor with its value at read time.
type State struct {
	*Sensor
	Value *float64 `json:"value"`
}

func (s *Sensor) State() State {
	return State{Sensor: s, Value: s.Value()}
}

// Build creates one sensor per player and statistic, in player order.
func Build(players []string, reader Reader) []*Sensor {
	out := make([]*Sensor, 0, len(players)*len(stats))
	for _, p := range players {
		for _, m := range stats {
			out = append(out, &Sensor{
				UniqueID:   uniqueID(p, m.Key),
				Name:       fmt.Sprintf("Fortnite %s %s", p, m.Label),
				Player:     p,
				Key:        m.Key,
				Icon:       m.Icon,
				Unit:       m.Unit,
				StateClass: StateClassMeasurement,
				reader:     reader,
			})
		}
	}
	return out
}

func uniqueID(player string, key domain.StatKey) string {
	return strings.ReplaceAll(strings.ToLower(fmt.Sprintf("fortnite_%s_%s", player, key)), " ", "_")
}
