package utils

import "sort"

// SignalDef describes one little-endian signal inside a CAN frame.
type SignalDef struct {
	Name      string  `yaml:"name"`
	StartBit  int     `yaml:"start_bit"`
	BitLength int     `yaml:"bit_length"`
	Signed    bool    `yaml:"signed"`
	Factor    float64 `yaml:"factor"`
	Offset    float64 `yaml:"offset"`
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	Default   float64 `yaml:"default"`
	Unit      string  `yaml:"unit"`
	Comment   string  `yaml:"comment"`
}

// FrameDef describes one CAN frame and its signals.
type FrameDef struct {
	ID        uint32      `yaml:"id"`
	Name      string      `yaml:"name"`
	DLC       int         `yaml:"dlc"`
	Direction string      `yaml:"direction"` // "tx" or "rx"
	CycleMS   int         `yaml:"cycle_ms"`
	Signals   []SignalDef `yaml:"signals"`
}

// CANMap indexes the frame definitions of one bus.
type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

// FrameNames returns all frame names, sorted.
func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
