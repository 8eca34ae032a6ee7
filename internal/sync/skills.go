package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/jslade/jobsync/internal/metrics"
)

// skillNameField is the primary field of the skills table.
const skillNameField = "Name"

// skillSet caches the skills table's name-to-record-id map and creates
// missing skills on demand.
type skillSet struct {
	table  Table
	byName map[string]string
}

func loadSkillSet(ctx context.Context, table Table) (*skillSet, error) {
	records, err := table.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	byName := make(map[string]string, len(records))
	for _, rec := range records {
		if name := rec.StringField(skillNameField); name != "" {
			byName[name] = rec.ID
		}
	}
	return &skillSet{table: table, byName: byName}, nil
}

// ensure creates records for any names not yet in the set, growing the map
// in place. Missing names are created in sorted order so runs are
// deterministic.
func (s *skillSet) ensure(ctx context.Context, names []string) error {
	missing := make(map[string]struct{})
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := s.byName[name]; !ok {
			missing[name] = struct{}{}
		}
	}
	if len(missing) == 0 {
		return nil
	}

	ordered := make([]string, 0, len(missing))
	for name := range missing {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	fields := make([]map[string]any, 0, len(ordered))
	for _, name := range ordered {
		fields = append(fields, map[string]any{skillNameField: name})
	}

	// A partial failure still returns the records created so far; record
	// those before reporting the error so the map stays accurate.
	created, err := s.table.BatchCreate(ctx, fields)
	for _, rec := range created {
		if name := rec.StringField(skillNameField); name != "" {
			s.byName[name] = rec.ID
		}
	}
	metrics.ObserveSkillsCreated(len(created))
	if err != nil {
		return fmt.Errorf("create skills: %w", err)
	}
	return nil
}

// ids resolves skill names to record ids, preserving input order and
// dropping names that are not in the set.
func (s *skillSet) ids(names []string) []string {
	var out []string
	for _, name := range names {
		if id, ok := s.byName[name]; ok {
			out = append(out, id)
		}
	}
	return out
}
