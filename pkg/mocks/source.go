package mocks

import (
	"io"

	"github.com/user/av1session/pkg/ports"
)

// UnitSource is a mock implementation of ports.UnitSource that replays Units.
type UnitSource struct {
	StreamInfo ports.StreamInfo
	Units      []ports.Unit
	Err        error // Returned instead of io.EOF after the last unit

	pos    int
	Closed bool
}

func (m *UnitSource) Info() ports.StreamInfo {
	return m.StreamInfo
}

func (m *UnitSource) Next() (ports.Unit, error) {
	if m.pos >= len(m.Units) {
		if m.Err != nil {
			return ports.Unit{}, m.Err
		}
		return ports.Unit{}, io.EOF
	}
	u := m.Units[m.pos]
	m.pos++
	return u, nil
}

func (m *UnitSource) Close() error {
	m.Closed = true
	return nil
}

var _ ports.UnitSource = (*UnitSource)(nil)
