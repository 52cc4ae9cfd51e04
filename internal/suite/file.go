package suite

import (
	"time"

	"github.com/mrz1836/trellis/internal/tenant"
)

// Action names a declarative step.
type Action string

// Step actions accepted in suite files.
const (
	ActionNavigate         Action = "navigate"
	ActionFill             Action = "fill"
	ActionClick            Action = "click"
	ActionAssertVisible    Action = "assert_visible"
	ActionAssertText       Action = "assert_text"
	ActionAssertNotVisible Action = "assert_not_visible"
	ActionRequest          Action = "request"
)

// ValidActions returns every accepted step action.
func ValidActions() []Action {
	return []Action{
		ActionNavigate,
		ActionFill,
		ActionClick,
		ActionAssertVisible,
		ActionAssertText,
		ActionAssertNotVisible,
		ActionRequest,
	}
}

// File is the YAML structure of one suite file.
//
// Example:
//
//	scenarios:
//	  - id: project-isolation
//	    tenant: acme
//	    sessions:
//	      - name: api
//	        capability: api
//	      - name: other
//	        capability: web
//	        tenant: globex
//	    fixtures:
//	      - id: project
//	        session: api
//	        method: POST
//	        path: /projects
//	        body: {name: "Apollo"}
//	        teardown:
//	          method: DELETE
//	          path: /projects/${project.id}
//	    steps:
//	      - id: not-leaked
//	        action: assert_not_visible
//	        session: other
//	        selector: .project-name
//	        text: ${project.name}
type File struct {
	Scenarios []ScenarioDoc `yaml:"scenarios"`
}

// ScenarioDoc is one scenario as written in a suite file.
type ScenarioDoc struct {
	ID          string        `yaml:"id"`
	Description string        `yaml:"description,omitempty"`
	Tenant      string        `yaml:"tenant"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Tags        []string      `yaml:"tags,omitempty"`
	Sessions    []SessionDoc  `yaml:"sessions"`
	Fixtures    []FixtureDoc  `yaml:"fixtures,omitempty"`
	Steps       []StepDoc     `yaml:"steps"`
}

// SessionDoc declares a session by configured capability name.
type SessionDoc struct {
	// Name defaults to the capability name.
	Name       string      `yaml:"name,omitempty"`
	Capability string      `yaml:"capability"`
	Role       tenant.Role `yaml:"role,omitempty"`

	// Tenant overrides the scenario tenant.
	Tenant string `yaml:"tenant,omitempty"`
}

// RequestDoc is an API call. Path, header values and string values in Body
// are templates.
type RequestDoc struct {
	Method       string            `yaml:"method,omitempty"`
	Path         string            `yaml:"path"`
	Body         any               `yaml:"body,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	ExpectStatus int               `yaml:"expect_status,omitempty"`
}

// FixtureDoc is a resource created through an API session.
type FixtureDoc struct {
	ID         string   `yaml:"id"`
	Session    string   `yaml:"session,omitempty"`
	DependsOn  []string `yaml:"depends_on,omitempty"`
	RequestDoc `yaml:",inline"`

	Teardown *RequestDoc `yaml:"teardown,omitempty"`
}

// StepDoc is one declarative step. Which fields apply depends on Action.
type StepDoc struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Action      Action `yaml:"action"`

	// Session may be omitted when the scenario declares exactly one.
	Session string `yaml:"session,omitempty"`

	Selector string   `yaml:"selector,omitempty"`
	Path     string   `yaml:"path,omitempty"`
	Value    string   `yaml:"value,omitempty"`
	Text     string   `yaml:"text,omitempty"`
	WaitFor  []string `yaml:"wait_for,omitempty"`

	Method       string            `yaml:"method,omitempty"`
	Body         any               `yaml:"body,omitempty"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	ExpectStatus int               `yaml:"expect_status,omitempty"`
	SaveAs       string            `yaml:"save_as,omitempty"`
}
