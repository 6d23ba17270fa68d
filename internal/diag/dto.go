// internal/diag/dto.go
package diag

import (
	"github.com/tamzrod/mattebox/internal/assoc"
	"github.com/tamzrod/mattebox/internal/machine"
)

type positionDTO struct {
	Position uint8  `json:"position"`
	UID      string `json:"uid,omitempty"`
	Name     string `json:"name,omitempty"`
}

type sectionDTO struct {
	State         string        `json:"state"`
	Pending       uint8         `json:"pending,omitempty"`
	PendingEvents string        `json:"pending_events,omitempty"`
	TagCount      uint8         `json:"tag_count"`
	Cycles        uint64        `json:"cycles"`
	Faults        uint16        `json:"faults"`
	Positions     []positionDTO `json:"positions"`
}

func toSectionDTO(v machine.View) sectionDTO {
	out := sectionDTO{
		State:    v.State.String(),
		Pending:  v.Pending,
		TagCount: v.Section.Count,
		Cycles:   v.Cycles,
		Faults:   v.Snapshot.Faults,
	}
	for i, s := range v.Section.ByPosition() {
		p := positionDTO{Position: uint8(i + 1)}
		if s.Occupied() {
			p.UID = s.UID.String()
			p.Name = s.Name.String()
		}
		out.Positions = append(out.Positions, p)
	}
	return out
}

type associationDTO struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	NameIndex uint16 `json:"name_index"`
}

func toAssociationDTO(a assoc.Association) associationDTO {
	return associationDTO{UID: a.UID.String(), Name: a.Name.String(), NameIndex: a.NameIndex}
}

type associateRequest struct {
	Name string `json:"name"`
}

type storeCounts struct {
	Names        uint16 `json:"names"`
	UIDs         uint16 `json:"uids"`
	NameCapacity uint16 `json:"name_capacity"`
	UIDCapacity  uint16 `json:"uid_capacity"`
}

