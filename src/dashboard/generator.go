// Package dashboard generates Lovelace YAML for the energy readouts.
package dashboard

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type entityRow struct {
	Entity string `yaml:"entity"`
	Name   string `yaml:"name,omitempty"`
}

type entitiesCard struct {
	Type     string      `yaml:"type"`
	Title    string      `yaml:"title,omitempty"`
	Entities []entityRow `yaml:"entities"`
}

type sankeyEntity struct {
	Type        string     `yaml:"type"`
	EntityID    string     `yaml:"entity_id"`
	Name        string     `yaml:"name,omitempty"`
	ChildrenSum *Reconcile `yaml:"children_sum,omitempty"`
	ParentsSum  *Reconcile `yaml:"parents_sum,omitempty"`
	Children    []string   `yaml:"children,omitempty"`
}

type sankeySection struct {
	SortGroupByParent bool           `yaml:"sort_group_by_parent"`
	Entities          []sankeyEntity `yaml:"entities"`
}

type sankeyCard struct {
	Type        string          `yaml:"type"`
	Title       string          `yaml:"title,omitempty"`
	Sections    []sankeySection `yaml:"sections"`
	ShowNames   bool            `yaml:"show_names"`
	ShowStates  bool            `yaml:"show_states"`
	ShowUnits   bool            `yaml:"show_units"`
	MinState    float64         `yaml:"min_state"`
	UnitPrefix  string          `yaml:"unit_prefix"`
	Round       int             `yaml:"round"`
	Layout      string          `yaml:"layout"`
	Height      int             `yaml:"height"`
	Throttle    int             `yaml:"throttle"`
	SortBy      string          `yaml:"sort_by"`
	MinBoxSize  int             `yaml:"min_box_size"`
	StaticScale float64         `yaml:"static_scale"`
}

type stackCard struct {
	Type  string `yaml:"type"`
	Cards []any  `yaml:"cards"`
}

// childIDs resolves child group names to the entity ids the chart links to
func childIDs(cfg Config, names []string) ([]string, error) {
	var ids []string
	for _, name := range names {
		found := false
		for _, child := range cfg.Groups {
			if child.Name != name {
				continue
			}
			found = true
			for _, e := range child.Entities {
				ids = append(ids, e.ID)
			}
			if child.Other != nil {
				ids = append(ids, child.Other.Key)
			}
			break
		}
		if !found {
			return nil, fmt.Errorf("unknown child group %q", name)
		}
	}
	return ids, nil
}

func buildSankey(cfg Config) (sankeyCard, error) {
	card := sankeyCard{
		Type:        "custom:sankey-chart",
		Title:       "Energy today",
		ShowNames:   true,
		ShowStates:  true,
		ShowUnits:   true,
		MinState:    10,
		UnitPrefix:  "k",
		Round:       1,
		Layout:      "horizontal",
		Height:      200,
		Throttle:    5000,
		SortBy:      "state",
		MinBoxSize:  10,
		StaticScale: 0,
	}

	for section := SectionSources; section < sectionCount; section++ {
		s := sankeySection{SortGroupByParent: true}

		for _, group := range cfg.Groups {
			if group.Section != section {
				continue
			}
			children, err := childIDs(cfg, group.Children)
			if err != nil {
				return sankeyCard{}, fmt.Errorf("group %s: %w", group.Name, err)
			}

			for _, e := range group.Entities {
				s.Entities = append(s.Entities, sankeyEntity{
					Type:     "entity",
					EntityID: e.ID,
					Name:     e.Label,
					Children: children,
				})
			}
			if group.Other != nil {
				s.Entities = append(s.Entities, sankeyEntity{
					Type:        group.Other.Type.String(),
					EntityID:    group.Other.Key,
					Name:        group.Other.Label,
					ChildrenSum: group.Other.ChildrenSum,
					ParentsSum:  group.Other.ParentsSum,
					Children:    children,
				})
			}
		}

		if len(s.Entities) > 0 {
			card.Sections = append(card.Sections, s)
		}
	}
	return card, nil
}

// Generate renders a vertical stack holding an entities card and a sankey card
func Generate(cfg Config) (string, error) {
	rows := make([]entityRow, 0, len(cfg.Rows))
	for _, r := range cfg.Rows {
		rows = append(rows, entityRow{Entity: r.ID, Name: r.Label})
	}

	sankey, err := buildSankey(cfg)
	if err != nil {
		return "", err
	}

	out, err := yaml.Marshal(stackCard{
		Type: "vertical-stack",
		Cards: []any{
			entitiesCard{Type: "entities", Title: cfg.Title, Entities: rows},
			sankey,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encoding dashboard: %w", err)
	}
	return string(out), nil
}

// DefaultGroups links grid import and solar to home consumption and export
func DefaultGroups(imported, exported, home string) []Group {
	return []Group{
		{
			Name:     "grid",
			Section:  SectionSources,
			Entities: []Entity{{ID: imported, Label: "Grid"}},
			Children: []string{"home"},
		},
		{
			Name:    "solar",
			Section: SectionSources,
			Other: &RemainderStrategy{
				Key:         "solar",
				Label:       "Solar",
				Type:        RemainderChildState,
				ChildrenSum: &Reconcile{ShouldBe: ShouldBeEqualOrLess, ReconcileTo: ReconcileToMax},
			},
			Children: []string{"home", "export"},
		},
		{
			Name:     "home",
			Section:  SectionConsumers,
			Entities: []Entity{{ID: home, Label: "Home"}},
		},
		{
			Name:     "export",
			Section:  SectionConsumers,
			Entities: []Entity{{ID: exported, Label: "Export"}},
		},
	}
}
