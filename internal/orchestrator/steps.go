package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"net/http"

	"github.com/mrz1836/trellis/internal/constants"
	"github.com/mrz1836/trellis/internal/driver"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
	"github.com/mrz1836/trellis/internal/wait"
)

// Navigate opens path on a UI session and waits for the location to change.
func Navigate(id, session string, path Text) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("navigate %s to %s", session, path),
		Kind:        constants.StepKindAction,
		Run: func(ctx context.Context, env *Env) error {
			s, p, err := sessionAndText(env, session, path)
			if err != nil {
				return err
			}
			return s.Navigate(ctx, p)
		},
	}
}

// Fill sets the value of a field and waits for it to be reflected.
func Fill(id, session, selector string, value Text) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("fill %s on %s", selector, session),
		Kind:        constants.StepKindAction,
		Run: func(ctx context.Context, env *Env) error {
			s, v, err := sessionAndText(env, session, value)
			if err != nil {
				return err
			}
			return s.Fill(ctx, selector, v)
		},
	}
}

// Click clicks selector, then waits for every waitFor selector to be visible.
func Click(id, session, selector string, waitFor ...string) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("click %s on %s", selector, session),
		Kind:        constants.StepKindAction,
		Run: func(ctx context.Context, env *Env) error {
			s, err := env.Session(session)
			if err != nil {
				return err
			}
			after := make([]wait.Condition, len(waitFor))
			for i, sel := range waitFor {
				after[i] = s.Locate(sel).Visible()
			}
			return s.Click(ctx, selector, after...)
		},
	}
}

// AssertVisible waits for selector to be visible.
func AssertVisible(id, session, selector string) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("%s visible on %s", selector, session),
		Kind:        constants.StepKindAssertion,
		Run: func(ctx context.Context, env *Env) error {
			s, err := env.Session(session)
			if err != nil {
				return err
			}
			return s.AssertVisible(ctx, selector)
		},
	}
}

// AssertText waits for an element matching selector to show text.
func AssertText(id, session, selector string, text Text) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("%s shows %q on %s", selector, text, session),
		Kind:        constants.StepKindAssertion,
		Run: func(ctx context.Context, env *Env) error {
			s, t, err := sessionAndText(env, session, text)
			if err != nil {
				return err
			}
			return s.AssertText(ctx, selector, t)
		},
	}
}

// AssertNotVisible is the tenant isolation assertion: no element matching
// selector may show text at any point during the observation window. An
// empty text means no visible element may match at all.
func AssertNotVisible(id, session, selector string, text Text) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("%s never shows %q on %s", selector, text, session),
		Kind:        constants.StepKindIsolation,
		Run: func(ctx context.Context, env *Env) error {
			s, t, err := sessionAndText(env, session, text)
			if err != nil {
				return err
			}
			return s.AssertNotVisible(ctx, selector, t)
		},
	}
}

// RequestSpec describes an API call made by a step or fixture. Path, header
// values and string values inside Body may hold ${...} references.
type RequestSpec struct {
	Method  string
	Path    Text
	Body    any
	Headers map[string]string

	// ExpectStatus is the required status. Zero accepts any 2xx.
	ExpectStatus int

	// SaveAs stores the decoded response body as an artifact for later steps.
	SaveAs string
}

func (r RequestSpec) build(artifacts fixture.Artifacts) (driver.Request, error) {
	path, err := r.Path.Resolve(artifacts)
	if err != nil {
		return driver.Request{}, err
	}
	body, err := expandBody(r.Body, artifacts)
	if err != nil {
		return driver.Request{}, err
	}
	var headers map[string]string
	if len(r.Headers) > 0 {
		headers = maps.Clone(r.Headers)
		for k, v := range headers {
			if headers[k], err = Template(v).Resolve(artifacts); err != nil {
				return driver.Request{}, err
			}
		}
	}
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	return driver.Request{Method: method, Path: path, Body: body, Headers: headers}, nil
}

func (r RequestSpec) check(req driver.Request, resp *driver.Response) error {
	if r.ExpectStatus != 0 && resp.StatusCode != r.ExpectStatus {
		return fmt.Errorf("%w: %s %s returned %d, want %d", trellerrors.ErrAssertionFailed, req.Method, req.Path, resp.StatusCode, r.ExpectStatus)
	}
	if r.ExpectStatus == 0 && !resp.OK() {
		return fmt.Errorf("%w: %s %s returned %d", trellerrors.ErrAssertionFailed, req.Method, req.Path, resp.StatusCode)
	}
	return nil
}

// Request issues an API call on session and checks its status.
func Request(id, session string, spec RequestSpec) Step {
	return Step{
		ID:          id,
		Description: fmt.Sprintf("%s %s on %s", spec.Method, spec.Path, session),
		Kind:        constants.StepKindAction,
		Run: func(ctx context.Context, env *Env) error {
			s, err := env.Session(session)
			if err != nil {
				return err
			}
			req, err := spec.build(env.artifacts)
			if err != nil {
				return err
			}
			resp, err := s.Request(ctx, req)
			if err != nil {
				return err
			}
			if err := spec.check(req, resp); err != nil {
				return err
			}
			if spec.SaveAs == "" {
				return nil
			}
			doc, err := decode(resp)
			if err != nil {
				return err
			}
			return env.Put(spec.SaveAs, doc)
		},
	}
}

// Custom wraps arbitrary scenario code as a step.
func Custom(id, description string, fn StepFunc) Step {
	return Step{ID: id, Description: description, Kind: constants.StepKindAction, Run: fn}
}

// RequestFixture creates a resource through an API session. The decoded
// response body becomes the artifact. When teardown is set it runs during
// tearing down; its templates see the fixture's own artifact under id, so a
// teardown path such as "/projects/${project.data.id}" deletes what was created.
func RequestFixture(id, session string, create RequestSpec, teardown *RequestSpec, dependsOn ...string) Fixture {
	node := Fixture{
		ID:        id,
		DependsOn: dependsOn,
		Produce: func(ctx context.Context, env *Env, deps fixture.Artifacts) (fixture.Artifact, error) {
			s, err := env.Session(session)
			if err != nil {
				return nil, err
			}
			req, err := create.build(deps)
			if err != nil {
				return nil, err
			}
			resp, err := s.Request(ctx, req)
			if err != nil {
				return nil, err
			}
			if err := create.check(req, resp); err != nil {
				return nil, err
			}
			return decode(resp)
		},
	}
	if teardown != nil {
		td := *teardown
		node.Teardown = func(ctx context.Context, env *Env, artifact fixture.Artifact) error {
			s, err := env.Session(session)
			if err != nil {
				return err
			}
			scope := env.Artifacts()
			scope[id] = artifact
			req, err := td.build(scope)
			if err != nil {
				return err
			}
			resp, err := s.Request(ctx, req)
			if err != nil {
				return err
			}
			return td.check(req, resp)
		}
	}
	return node
}

// decode returns the JSON body of resp with numbers kept as json.Number, or
// nil for an empty body.
func decode(resp *driver.Response) (any, error) {
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, nil //nolint:nilnil // empty body has no document
	}
	return resp.Field("")
}

func sessionAndText(env *Env, name string, t Text) (*driver.Session, string, error) {
	s, err := env.Session(name)
	if err != nil {
		return nil, "", err
	}
	v, err := t.Resolve(env.artifacts)
	if err != nil {
		return nil, "", err
	}
	return s, v, nil
}
