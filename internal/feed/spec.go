package feed

import (
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// Spec selects the changes a subscriber receives.
type Spec struct {
	Table  string
	Event  domain.ChangeType // INSERT, UPDATE or * (default)
	Filter Filter
}

// ParseSpec builds a Spec from its wire form, as used by the realtime endpoint.
func ParseSpec(table, event, filter string) (Spec, error) {
	spec := Spec{Table: table, Event: domain.ChangeType(strings.ToUpper(event))}
	if spec.Event == "" {
		spec.Event = domain.ChangeAll
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}

	f, err := ParseFilter(filter)
	if err != nil {
		return Spec{}, err
	}
	spec.Filter = f
	return spec, nil
}

// Validate checks table and event.
func (s Spec) Validate() error {
	switch s.Table {
	case domain.TableStreams, domain.TableStreamChat:
	default:
		return fmt.Errorf("unknown table %q", s.Table)
	}
	switch s.Event {
	case "", domain.ChangeAll, domain.ChangeInsert, domain.ChangeUpdate:
	default:
		return fmt.Errorf("unknown event %q", s.Event)
	}
	return nil
}

// Match reports whether change is selected by s.
func (s Spec) Match(change *domain.Change) bool {
	if change.Table != s.Table {
		return false
	}
	if s.Event != "" && s.Event != domain.ChangeAll && s.Event != change.Type {
		return false
	}
	return s.Filter.Match(change)
}
