package macaroon

import (
	"fmt"

	"gopkg.in/macaroon.v2"
)

// Info is a read-only view of a macaroon's contents.
type Info struct {
	ID       []byte
	Location string
	Version  int
	// Caveats lists first-party caveat conditions in order.
	Caveats []string
	// ThirdParty counts third-party caveats, which carry a location.
	ThirdParty int
}

// Inspect decodes a binary macaroon. It never changes what Credential sends.
func Inspect(raw []byte) (Info, error) {
	var m macaroon.Macaroon
	if err := m.UnmarshalBinary(raw); err != nil {
		return Info{}, fmt.Errorf("unmarshal macaroon: %w", err)
	}
	info := Info{
		ID:       m.Id(),
		Location: m.Location(),
		Version:  int(m.Version()),
	}
	for _, c := range m.Caveats() {
		if c.Location != "" {
			info.ThirdParty++
			continue
		}
		info.Caveats = append(info.Caveats, string(c.Id))
	}
	return info, nil
}
