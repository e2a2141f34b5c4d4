package transfer

import (
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

const semverPattern = `^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`

func intp(n int) *int { return &n }

func str() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }

func null() *jsonschema.Schema { return &jsonschema.Schema{Type: "null"} }

func ref(name string) *jsonschema.Schema { return &jsonschema.Schema{Ref: "#/$defs/" + name} }

func nullable(s *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{AnyOf: []*jsonschema.Schema{s, null()}}
}

func arrayOf(s *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Items: s}
}

func object(props map[string]*jsonschema.Schema) *jsonschema.Schema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// attrTuple is ["name", ["v1", ...]].
func attrTuple() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		PrefixItems: []*jsonschema.Schema{str(), arrayOf(str())},
		MinItems:    intp(2),
		MaxItems:    intp(2),
	}
}

func versionProp() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Pattern: semverPattern}
}

// expandedSchema describes payloads with full field names. Ancestor nodes
// must carry children: null and descendants parent: null.
func expandedSchema() *jsonschema.Schema {
	attrs := arrayOf(attrTuple())
	bindingSchema := object(map[string]*jsonschema.Schema{
		"id":       str(),
		"domain":   str(),
		"path":     str(),
		"key":      str(),
		"selector": str(),
	})
	bindingSchema.Properties["xpathObject"] = nullable(ref("node"))

	s := object(map[string]*jsonschema.Schema{
		"bindings":    arrayOf(bindingSchema),
		"vindVersion": versionProp(),
	})
	s.Properties["disabledPaths"] = arrayOf(str())
	s.Defs = map[string]*jsonschema.Schema{
		"node": object(map[string]*jsonschema.Schema{
			"tagName":  str(),
			"attrs":    attrs,
			"parent":   nullable(ref("parent")),
			"children": nullable(arrayOf(ref("child"))),
		}),
		"parent": object(map[string]*jsonschema.Schema{
			"tagName":  str(),
			"attrs":    attrs,
			"parent":   nullable(ref("parent")),
			"children": null(),
		}),
		"child": object(map[string]*jsonschema.Schema{
			"tagName":  str(),
			"attrs":    attrs,
			"parent":   null(),
			"children": nullable(arrayOf(ref("child"))),
		}),
	}
	return s
}

// minifiedSchema describes payloads with single-letter keys.
func minifiedSchema() *jsonschema.Schema {
	attrs := arrayOf(attrTuple())
	s := object(map[string]*jsonschema.Schema{
		"bindings": arrayOf(object(map[string]*jsonschema.Schema{
			"i": str(),
			"d": str(),
			"p": str(),
			"k": str(),
			"s": str(),
			"x": nullable(ref("node")),
		})),
		"vindVersion": versionProp(),
	})
	s.Properties["disabledPaths"] = arrayOf(str())
	s.Defs = map[string]*jsonschema.Schema{
		"node": object(map[string]*jsonschema.Schema{
			"t": str(),
			"a": attrs,
			"p": nullable(ref("parent")),
			"c": nullable(arrayOf(ref("child"))),
		}),
		"parent": object(map[string]*jsonschema.Schema{
			"t": str(),
			"a": attrs,
			"p": nullable(ref("parent")),
		}),
		"child": object(map[string]*jsonschema.Schema{
			"t": str(),
			"a": attrs,
			"c": nullable(arrayOf(ref("child"))),
		}),
	}
	return s
}

// versionSchema only checks the version field, before the shape is known.
func versionSchema() *jsonschema.Schema {
	return object(map[string]*jsonschema.Schema{
		"vindVersion": versionProp(),
	})
}

type schemas struct {
	expanded *jsonschema.Resolved
	minified *jsonschema.Resolved
	version  *jsonschema.Resolved
}

var loadSchemas = sync.OnceValues(func() (*schemas, error) {
	expanded, err := expandedSchema().Resolve(nil)
	if err != nil {
		return nil, err
	}
	minified, err := minifiedSchema().Resolve(nil)
	if err != nil {
		return nil, err
	}
	version, err := versionSchema().Resolve(nil)
	if err != nil {
		return nil, err
	}
	return &schemas{expanded: expanded, minified: minified, version: version}, nil
})
