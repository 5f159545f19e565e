package auth

import (
	_ "embed"
	"strings"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"

	"github.com/xenking/storefront/internal/domain/user"
)

//go:embed policy.yaml
var defaultPolicy []byte

// Access is the rule attached to one route.
type Access struct {
	Public        bool
	Authenticated bool
	Roles         []user.Role
}

// Allows reports whether role satisfies a role-restricted rule. Rules without
// roles allow any authenticated caller.
func (a Access) Allows(role user.Role) bool {
	if len(a.Roles) == 0 {
		return true
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// UnmarshalYAML accepts "public", "authenticated" or a sequence of roles.
func (a *Access) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Value {
		case "public":
			a.Public = true
		case "authenticated":
			a.Authenticated = true
		default:
			return errors.Errorf("line %d: unknown access %q", node.Line, node.Value)
		}
		return nil
	case yaml.SequenceNode:
		var roles []user.Role
		if err := node.Decode(&roles); err != nil {
			return err
		}
		if len(roles) == 0 {
			return errors.Errorf("line %d: empty role list", node.Line)
		}
		for _, r := range roles {
			if !r.Valid() {
				return errors.Errorf("line %d: unknown role %q", node.Line, r)
			}
		}
		a.Authenticated = true
		a.Roles = roles
		return nil
	default:
		return errors.Errorf("line %d: access must be a string or a list", node.Line)
	}
}

// Policy maps "METHOD /pattern" to its access rule.
type Policy struct {
	Routes map[string]Access `yaml:"routes"`
}

// ParsePolicy decodes a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, "parse policy")
	}
	return &p, nil
}

// DefaultPolicy returns the embedded route policy.
func DefaultPolicy() (*Policy, error) {
	return ParsePolicy(defaultPolicy)
}

// Lookup returns the rule for method and route pattern.
func (p *Policy) Lookup(method, pattern string) (Access, bool) {
	a, ok := p.Routes[strings.ToUpper(method)+" "+pattern]
	return a, ok
}
