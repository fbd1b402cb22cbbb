package observation

import "strings"

// VisibleDataKey is the metadata key holding the ids of artefacts visible to
// the agent when the observation was recorded.
const VisibleDataKey = "visible_data"

// Artefact is an externally tracked unit of retrieved or produced data.
type Artefact struct {
	ID          string   `json:"id"`
	Kind        string   `json:"kind,omitempty"`
	SourceTool  string   `json:"source_tool,omitempty"`
	Sensitivity Level    `json:"sensitivity"`
	Tags        []string `json:"tags,omitempty"`
}

// ArtefactSet indexes artefacts by id. The first artefact seen for an id wins.
type ArtefactSet map[string]Artefact

// NewArtefactSet builds an ArtefactSet, skipping artefacts without an id.
func NewArtefactSet(artefacts []Artefact) ArtefactSet {
	set := make(ArtefactSet, len(artefacts))
	for _, a := range artefacts {
		if a.ID == "" {
			continue
		}
		if _, ok := set[a.ID]; ok {
			continue
		}
		set[a.ID] = a
	}
	return set
}

// VisibleArtefactIDs returns the artefact ids listed under metadata
// "visible_data", in recorded order, without blanks or duplicates.
func (o *Observation) VisibleArtefactIDs() []string {
	if o.Metadata == nil {
		return nil
	}

	raw, ok := o.Metadata[VisibleDataKey].([]any)
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		ids = append(ids, s)
	}

	return ids
}
