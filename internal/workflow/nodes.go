package workflow

// DefaultMaxIterations bounds a Loop that does not set MaxIterations.
const DefaultMaxIterations = 3

// Node is one element of a workflow pipeline: *Step, *Loop or *Condition.
type Node interface {
	NodeName() string
	node()
}

// Step always runs its executor once.
type Step struct {
	Name        string
	Description string
	Executor    Executor
}

// Loop runs its body until EndCondition passes or MaxIterations is reached.
// Running out of iterations is not an error.
type Loop struct {
	Name          string
	Steps         []Node
	EndCondition  EndCondition
	MaxIterations int
}

// Condition runs its steps only when Evaluator passes; otherwise it is a no-op.
type Condition struct {
	Name      string
	Evaluator Evaluator
	Steps     []Node
}

func (s *Step) NodeName() string      { return s.Name }
func (l *Loop) NodeName() string      { return l.Name }
func (c *Condition) NodeName() string { return c.Name }

func (*Step) node()      {}
func (*Loop) node()      {}
func (*Condition) node() {}

func (l *Loop) maxIterations() int {
	if l.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return l.MaxIterations
}
