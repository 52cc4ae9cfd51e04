package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mrz1836/trellis/internal/driver"
	trellerrors "github.com/mrz1836/trellis/internal/errors"
	"github.com/mrz1836/trellis/internal/fixture"
)

// templateRef matches ${artifact} and ${artifact.field.path}.
var templateRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Text is a step argument that may refer to artifacts. It is resolved when
// the step runs, after the fixtures it refers to have produced.
type Text struct {
	raw    string
	expand bool
}

// Literal is used verbatim.
func Literal(s string) Text {
	return Text{raw: s}
}

// Template expands every ${id} or ${id.path} reference with the artifact
// value, for example "Project ${project.data.name}".
func Template(s string) Text {
	return Text{raw: s, expand: true}
}

// ArtifactField is the value at path inside artifact id.
func ArtifactField(id, path string) Text {
	ref := id
	if path != "" {
		ref += "." + path
	}
	return Template("${" + ref + "}")
}

// String returns the unresolved text.
func (t Text) String() string {
	return t.raw
}

// IsZero reports whether t is empty.
func (t Text) IsZero() bool {
	return t.raw == ""
}

// Refs returns the artifact ids t refers to.
func (t Text) Refs() []string {
	if !t.expand {
		return nil
	}
	var ids []string
	for _, m := range templateRef.FindAllStringSubmatch(t.raw, -1) {
		id, _, _ := strings.Cut(m[1], ".")
		ids = append(ids, id)
	}
	return ids
}

// Resolve expands t against artifacts.
func (t Text) Resolve(artifacts fixture.Artifacts) (string, error) {
	if !t.expand {
		return t.raw, nil
	}
	var firstErr error
	out := templateRef.ReplaceAllStringFunc(t.raw, func(m string) string {
		ref := templateRef.FindStringSubmatch(m)[1]
		v, err := lookupArtifact(artifacts, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

func lookupArtifact(artifacts fixture.Artifacts, ref string) (string, error) {
	id, path, _ := strings.Cut(ref, ".")
	a, ok := artifacts[id]
	if !ok {
		return "", fmt.Errorf("%w: unknown artifact %q in ${%s}", trellerrors.ErrInvalidScenario, id, ref)
	}
	v, err := driver.Lookup(a, path)
	if err != nil {
		return "", trellerrors.Wrapf(err, "resolve ${%s}", ref)
	}
	return format(v)
}

func format(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case fmt.Stringer:
		return x.String(), nil
	case map[string]any, []any:
		data, err := json.Marshal(x)
		if err != nil {
			return "", fmt.Errorf("format artifact: %w", err)
		}
		return string(data), nil
	default:
		return fmt.Sprint(x), nil
	}
}

// expandBody resolves templates inside string values of a JSON-like body.
func expandBody(body any, artifacts fixture.Artifacts) (any, error) {
	switch b := body.(type) {
	case string:
		return Template(b).Resolve(artifacts)
	case Text:
		return b.Resolve(artifacts)
	case map[string]any:
		out := make(map[string]any, len(b))
		for k, v := range b {
			ev, err := expandBody(v, artifacts)
			if err != nil {
				return nil, err
			}
			out[k] = ev
		}
		return out, nil
	case []any:
		out := make([]any, len(b))
		for i, v := range b {
			ev, err := expandBody(v, artifacts)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	default:
		return body, nil
	}
}
