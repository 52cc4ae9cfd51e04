package suite

import (
	"fmt"
	"slices"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/domain"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/orchestrator"
)

// Compile turns a scenario document into a plan. Sessions must name
// configured capabilities, fixtures must run on API sessions, UI actions
// must run on web or mobile_web sessions, and every ${...} reference must
// name a fixture or an earlier step's save_as.
func Compile(doc ScenarioDoc, caps CapabilitySource) (*orchestrator.Plan, error) {
	b := &builder{doc: doc, kinds: make(map[string]constants.CapabilityKind)}

	sc := orchestrator.Scenario{
		ID:          doc.ID,
		Description: doc.Description,
		TenantID:    doc.Tenant,
		Timeout:     doc.Timeout,
		Tags:        slices.Clone(doc.Tags),
	}

	for _, sd := range doc.Sessions {
		capability, ok := caps.Capability(sd.Capability)
		if !ok {
			return nil, fmt.Errorf("%w: scenario %q: %q", trellerrors.ErrUnknownCapability, doc.ID, sd.Capability)
		}
		name := sd.Name
		if name == "" {
			name = sd.Capability
		}
		b.kinds[name] = capability.Kind
		b.names = append(b.names, name)
		sc.Sessions = append(sc.Sessions, orchestrator.SessionRequest{
			Name:       name,
			Capability: capability,
			Role:       sd.Role,
			TenantID:   sd.Tenant,
		})
	}

	fixtureIDs := make(map[string]bool, len(doc.Fixtures))
	for _, fd := range doc.Fixtures {
		fixtureIDs[fd.ID] = true
	}
	for _, fd := range doc.Fixtures {
		f, err := b.fixture(fd, fixtureIDs)
		if err != nil {
			return nil, err
		}
		sc.Fixtures = append(sc.Fixtures, f)
	}

	known := make(map[string]bool, len(fixtureIDs))
	for id := range fixtureIDs {
		known[id] = true
	}
	for _, sd := range doc.Steps {
		st, err := b.step(sd, known)
		if err != nil {
			return nil, err
		}
		sc.Steps = append(sc.Steps, st)
		if sd.SaveAs != "" {
			known[sd.SaveAs] = true
		}
	}

	return orchestrator.Compile(sc)
}

type builder struct {
	doc   ScenarioDoc
	names []string
	kinds map[string]constants.CapabilityKind
}

func (b *builder) invalid(format string, args ...any) error {
	return fmt.Errorf("%w: scenario %q: %s", trellerrors.ErrInvalidScenario, b.doc.ID, fmt.Sprintf(format, args...))
}

// session resolves a session reference and checks it has the wanted surface.
func (b *builder) session(name, owner string, ui bool) (string, error) {
	if name == "" {
		if len(b.names) != 1 {
			return "", b.invalid("%s must name a session", owner)
		}
		name = b.names[0]
	}
	kind, ok := b.kinds[name]
	if !ok {
		return "", fmt.Errorf("%w: scenario %q %s: %w %q",
			trellerrors.ErrInvalidScenario, b.doc.ID, owner, trellerrors.ErrSessionNotFound, name)
	}
	if kind.IsUI() != ui {
		return "", fmt.Errorf("%w: scenario %q %s on %s session %q: %w",
			trellerrors.ErrInvalidScenario, b.doc.ID, owner, kind, name, trellerrors.ErrUnsupportedAction)
	}
	return name, nil
}

func (b *builder) fixture(fd FixtureDoc, all map[string]bool) (orchestrator.Fixture, error) {
	owner := fmt.Sprintf("fixture %q", fd.ID)
	session, err := b.session(fd.Session, owner, false)
	if err != nil {
		return orchestrator.Fixture{}, err
	}
	if fd.Path == "" {
		return orchestrator.Fixture{}, b.invalid("%s: path is required", owner)
	}

	deps := make(map[string]bool, len(fd.DependsOn))
	for _, d := range fd.DependsOn {
		deps[d] = true
	}
	create := requestSpec(fd.RequestDoc, "")
	if err := b.checkRefs(owner, deps, requestTexts(create)...); err != nil {
		return orchestrator.Fixture{}, err
	}

	var teardown *orchestrator.RequestSpec
	if fd.Teardown != nil {
		td := requestSpec(*fd.Teardown, "")
		if err := b.checkRefs(owner+" teardown", all, requestTexts(td)...); err != nil {
			return orchestrator.Fixture{}, err
		}
		teardown = &td
	}
	return orchestrator.RequestFixture(fd.ID, session, create, teardown, fd.DependsOn...), nil
}

func (b *builder) step(sd StepDoc, known map[string]bool) (orchestrator.Step, error) {
	owner := fmt.Sprintf("step %q", sd.ID)
	if !slices.Contains(ValidActions(), sd.Action) {
		return orchestrator.Step{}, b.invalid("%s: unknown action %q", owner, sd.Action)
	}

	session, err := b.session(sd.Session, owner, sd.Action != ActionRequest)
	if err != nil {
		return orchestrator.Step{}, err
	}

	require := func(field, value string) error {
		if value == "" {
			return b.invalid("%s: %s requires %s", owner, sd.Action, field)
		}
		return nil
	}

	var st orchestrator.Step
	switch sd.Action {
	case ActionNavigate:
		if err := require("path", sd.Path); err != nil {
			return st, err
		}
		path := orchestrator.Template(sd.Path)
		if err := b.checkRefs(owner, known, path); err != nil {
			return st, err
		}
		st = orchestrator.Navigate(sd.ID, session, path)
	case ActionFill:
		if err := require("selector", sd.Selector); err != nil {
			return st, err
		}
		value := orchestrator.Template(sd.Value)
		if err := b.checkRefs(owner, known, value); err != nil {
			return st, err
		}
		st = orchestrator.Fill(sd.ID, session, sd.Selector, value)
	case ActionClick:
		if err := require("selector", sd.Selector); err != nil {
			return st, err
		}
		st = orchestrator.Click(sd.ID, session, sd.Selector, sd.WaitFor...)
	case ActionAssertVisible:
		if err := require("selector", sd.Selector); err != nil {
			return st, err
		}
		st = orchestrator.AssertVisible(sd.ID, session, sd.Selector)
	case ActionAssertText:
		if err := require("selector", sd.Selector); err != nil {
			return st, err
		}
		if err := require("text", sd.Text); err != nil {
			return st, err
		}
		text := orchestrator.Template(sd.Text)
		if err := b.checkRefs(owner, known, text); err != nil {
			return st, err
		}
		st = orchestrator.AssertText(sd.ID, session, sd.Selector, text)
	case ActionAssertNotVisible:
		if err := require("selector", sd.Selector); err != nil {
			return st, err
		}
		text := orchestrator.Template(sd.Text)
		if err := b.checkRefs(owner, known, text); err != nil {
			return st, err
		}
		st = orchestrator.AssertNotVisible(sd.ID, session, sd.Selector, text)
	case ActionRequest:
		if err := require("path", sd.Path); err != nil {
			return st, err
		}
		spec := requestSpec(RequestDoc{
			Method:       sd.Method,
			Path:         sd.Path,
			Body:         sd.Body,
			Headers:      sd.Headers,
			ExpectStatus: sd.ExpectStatus,
		}, sd.SaveAs)
		if err := b.checkRefs(owner, known, requestTexts(spec)...); err != nil {
			return st, err
		}
		st = orchestrator.Request(sd.ID, session, spec)
	}

	if sd.Description != "" {
		st.Description = sd.Description
	}
	return st, nil
}

// checkRefs rejects references to artifacts outside scope.
func (b *builder) checkRefs(owner string, scope map[string]bool, texts ...orchestrator.Text) error {
	for _, t := range texts {
		for _, ref := range t.Refs() {
			if !scope[ref] {
				return b.invalid("%s: %q refers to unknown artifact %q", owner, t, ref)
			}
		}
	}
	return nil
}

func requestSpec(doc RequestDoc, saveAs string) orchestrator.RequestSpec {
	return orchestrator.RequestSpec{
		Method:       doc.Method,
		Path:         orchestrator.Template(doc.Path),
		Body:         doc.Body,
		Headers:      doc.Headers,
		ExpectStatus: doc.ExpectStatus,
		SaveAs:       saveAs,
	}
}

// requestTexts returns every template of spec, including string values
// nested in its body.
func requestTexts(spec orchestrator.RequestSpec) []orchestrator.Text {
	texts := []orchestrator.Text{spec.Path}
	for _, v := range spec.Headers {
		texts = append(texts, orchestrator.Template(v))
	}
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			texts = append(texts, orchestrator.Template(x))
		case map[string]any:
			for _, e := range x {
				walk(e)
			}
		case []any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	walk(spec.Body)
	return texts
}

// Capabilities adapts a name → capability map to a CapabilitySource.
type Capabilities map[string]domain.Capability

// Capability returns a copy of the named capability with its name set.
func (c Capabilities) Capability(name string) (domain.Capability, bool) {
	capability, ok := c[name]
	if !ok {
		return domain.Capability{}, false
	}
	capability = capability.Clone()
	capability.Name = name
	return capability, true
}
