package settings

import (
	"errors"
	"fmt"
)

// DuplicateIdentityError reports two siblings sharing an identity.
type DuplicateIdentityError struct {
	Kind     string // "data source", "service", "connector", "host"
	Identity string
	Scope    string // owner of the sibling collection, empty for top level
}

func (e *DuplicateIdentityError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("duplicate %s %q", e.Kind, e.Identity)
	}
	return fmt.Sprintf("duplicate %s %q in %s", e.Kind, e.Identity, e.Scope)
}

// Unique checks identities across one sibling collection. The collection is
// passed explicitly; entities hold no reference to their owner.
func Unique[T any](kind, scope string, siblings []T, identity func(T) string) error {
	seen := make(map[string]struct{}, len(siblings))
	var errs []error
	for _, s := range siblings {
		id := identity(s)
		if _, dup := seen[id]; dup {
			errs = append(errs, &DuplicateIdentityError{Kind: kind, Identity: id, Scope: scope})
			continue
		}
		seen[id] = struct{}{}
	}
	return errors.Join(errs...)
}

// Validate checks required fields and sibling identity uniqueness.
func (s *Settings) Validate() error {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if s.General.ShutdownCommand == "" {
		add(errors.New("general: shutdownCommand is required"))
	}
	for i, ds := range s.DataSources {
		if ds.JndiName == "" {
			add(fmt.Errorf("dataSources[%d]: jndiName is required", i))
		}
		if ds.Type != TomcatJDBC && ds.Type != DBCP {
			add(fmt.Errorf("dataSources[%d]: unknown type %q", i, ds.Type))
		}
	}
	add(Unique("data source", "", s.DataSources, func(d DataSource) string { return d.JndiName }))

	for i, svc := range s.Services {
		if svc.Name == "" {
			add(fmt.Errorf("services[%d]: name is required", i))
		}
		scope := fmt.Sprintf("service %q", svc.Name)
		for j, c := range svc.Connectors {
			if c.Port <= 0 || c.Port > 65535 {
				add(fmt.Errorf("%s: connectors[%d]: invalid port %d", scope, j, c.Port))
			}
		}
		add(Unique("connector", scope, svc.Connectors, Connector.Identity))
		if svc.Engine.Name == "" {
			add(fmt.Errorf("%s: engine name is required", scope))
		}
		add(Unique("host", scope, svc.Engine.Hosts, func(h Host) string { return h.Name }))
	}
	add(Unique("service", "", s.Services, func(v Service) string { return v.Name }))

	return errors.Join(errs...)
}
