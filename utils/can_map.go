package utils

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type canMapFile struct {
	Frames []FrameDef `yaml:"frames"`
}

// LoadCANMap reads and validates a YAML bus definition.
func LoadCANMap(path string) (*CANMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read can map: %w", err)
	}

	var file canMapFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse can map: %w", err)
	}
	if len(file.Frames) == 0 {
		return nil, fmt.Errorf("can map %s defines no frames", path)
	}

	m := &CANMap{
		ByID:   make(map[uint32]*FrameDef, len(file.Frames)),
		ByName: make(map[string]*FrameDef, len(file.Frames)),
	}

	for i := range file.Frames {
		fd := &file.Frames[i]
		if fd.Name == "" {
			return nil, fmt.Errorf("frame 0x%X has no name", fd.ID)
		}
		if fd.DLC <= 0 || fd.DLC > 8 {
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", fd.Name, fd.ID, fd.DLC)
		}
		if _, dup := m.ByID[fd.ID]; dup {
			return nil, fmt.Errorf("duplicate frame id 0x%X", fd.ID)
		}
		if _, dup := m.ByName[fd.Name]; dup {
			return nil, fmt.Errorf("duplicate frame name %q", fd.Name)
		}

		for j := range fd.Signals {
			s := &fd.Signals[j]
			if s.BitLength <= 0 || s.BitLength > 64 {
				return nil, fmt.Errorf("frame %s signal %s: invalid bit_length %d", fd.Name, s.Name, s.BitLength)
			}
			if s.StartBit < 0 || s.StartBit+s.BitLength > fd.DLC*8 {
				return nil, fmt.Errorf("frame %s signal %s: bits [%d, %d) exceed dlc %d",
					fd.Name, s.Name, s.StartBit, s.StartBit+s.BitLength, fd.DLC)
			}
			if s.Factor == 0 {
				s.Factor = 1
			}
		}

		m.ByID[fd.ID] = fd
		m.ByName[fd.Name] = fd
	}

	return m, nil
}

// FrameByName looks up a frame definition by name.
func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

// FrameByID looks up a frame definition by arbitration id.
func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}
