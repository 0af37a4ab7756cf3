package render

type workflowDocument struct {
	Name string                 `yaml:"name"`
	On   []string               `yaml:"on"`
	Jobs map[string]workflowJob `yaml:"jobs"`
}

type workflowJob struct {
	RunsOn string         `yaml:"runs-on"`
	Steps  []workflowStep `yaml:"steps"`
}

type workflowStep struct {
	Name string      `yaml:"name,omitempty"`
	Uses string      `yaml:"uses"`
	With *stepInputs `yaml:"with,omitempty"`
}

// stepInputs fields are declared in the order they appear under a step's "with" block.
type stepInputs struct {
	Registry  string   `yaml:"registry,omitempty"`
	Username  string   `yaml:"username,omitempty"`
	Password  string   `yaml:"password,omitempty"`
	Context   string   `yaml:"context,omitempty"`
	Push      string   `yaml:"push,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
	Platforms string   `yaml:"platforms,omitempty"`
}
