package dashboard

// Section is a column of the sankey diagram
type Section int

const (
	SectionSources Section = iota
	SectionConsumers
	sectionCount
)

// ShouldBe represents the comparison type for reconciliation
type ShouldBe int

const (
	ShouldBeEqual ShouldBe = iota
	ShouldBeEqualOrLess
	ShouldBeEqualOrMore
)

func (s ShouldBe) String() string {
	switch s {
	case ShouldBeEqualOrLess:
		return "equal_or_less"
	case ShouldBeEqualOrMore:
		return "equal_or_more"
	default:
		return "equal"
	}
}

func (s ShouldBe) MarshalYAML() (any, error) {
	return s.String(), nil
}

// ReconcileTo represents how mismatched sums are resolved
type ReconcileTo int

const (
	ReconcileToMin ReconcileTo = iota
	ReconcileToMax
	ReconcileToMean
	ReconcileToLatest
)

func (r ReconcileTo) String() string {
	switch r {
	case ReconcileToMax:
		return "max"
	case ReconcileToMean:
		return "mean"
	case ReconcileToLatest:
		return "latest"
	default:
		return "min"
	}
}

func (r ReconcileTo) MarshalYAML() (any, error) {
	return r.String(), nil
}

// Reconcile represents validation/correction rules
type Reconcile struct {
	ShouldBe    ShouldBe    `yaml:"should_be"`
	ReconcileTo ReconcileTo `yaml:"reconcile_to"`
}

// RemainderType is how the chart derives an entity with no sensor of its own
type RemainderType int

const (
	RemainderParentState RemainderType = iota
	RemainderChildState
)

func (r RemainderType) String() string {
	if r == RemainderChildState {
		return "remaining_child_state"
	}
	return "remaining_parent_state"
}

// RemainderStrategy defines a calculated remainder entity
type RemainderStrategy struct {
	Key         string
	Label       string
	Type        RemainderType
	ChildrenSum *Reconcile
	ParentsSum  *Reconcile
}

// Entity is a Home Assistant entity shown on the dashboard
type Entity struct {
	ID    string
	Label string
}

// Group is a set of entities in one section, linked to child groups
type Group struct {
	Name     string
	Section  Section
	Entities []Entity
	Other    *RemainderStrategy
	Children []string // child group names
}

// Config holds everything the dashboard is generated from
type Config struct {
	Title  string
	Rows   []Entity // entities card, in order
	Groups []Group  // sankey card
}
