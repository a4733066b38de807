package convert

import (
	"github.com/beevik/etree"
)

// IdentitySpec describes how one kind of identity-bearing element is matched
// against desired entities.
type IdentitySpec[T any] struct {
	Tag string
	// Candidate selects elements of Tag that may be matched and updated.
	// Nil accepts every element of Tag.
	Candidate func(el *etree.Element) bool
	// Recognized reports whether an unmatched element may be removed.
	// Elements it rejects are left alone even when no desired entity names them.
	Recognized func(el *etree.Element) bool
	// ElementID returns the resolved identity of an existing element.
	ElementID func(el *etree.Element) string
	// EntityID returns the identity of a desired entity.
	EntityID func(v T) string
	// Write projects v onto el, which may be freshly created and empty.
	Write func(el *etree.Element, v T) error
}

// MergeIdentities reconciles desired against the children of parent named
// spec.Tag. Matched elements are updated in place, so their position and
// foreign children survive; new entities are added after the last element
// of the same tag; recognized elements nobody asked for are removed.
// Desired identities are expected to be unique.
func MergeIdentities[T any](c *Context, parent *etree.Element, desired []T, spec IdentitySpec[T]) error {
	var candidates []*etree.Element
	byID := map[string]*etree.Element{}
	for _, el := range parent.SelectElements(spec.Tag) {
		if spec.Candidate != nil && !spec.Candidate(el) {
			continue
		}
		candidates = append(candidates, el)
		id := spec.ElementID(el)
		if _, dup := byID[id]; !dup {
			byID[id] = el
		}
	}

	wanted := make(map[*etree.Element]struct{}, len(desired))
	for _, v := range desired {
		el, ok := byID[spec.EntityID(v)]
		if !ok {
			el = etree.NewElement(spec.Tag)
			if sibs := parent.SelectElements(spec.Tag); len(sibs) > 0 {
				c.Doc.InsertAfter(sibs[len(sibs)-1], el)
			} else {
				c.Doc.AppendChild(parent, el)
			}
		}
		wanted[el] = struct{}{}
		if err := spec.Write(el, v); err != nil {
			return err
		}
	}

	for _, el := range candidates {
		if _, keep := wanted[el]; keep {
			continue
		}
		if spec.Recognized != nil && !spec.Recognized(el) {
			continue
		}
		c.Doc.RemoveChild(el)
	}
	return nil
}
