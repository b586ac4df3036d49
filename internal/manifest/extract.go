package manifest

import "fmt"

// Source is implemented by a runtime backend to expose the manifest it
// was given through the scripted declaration API. ReadDeclaration returns
// ok=false when the app never called manifest(...) — the absent case.
//
// Release is called once extraction is complete, after the sandbox has
// been applied. Backends that copy strings out of their own heap on
// declaration can make Release a no-op; backends that hand back strings
// borrowed from VM-owned memory must not free or otherwise invalidate
// them until Release runs.
type Source interface {
	ReadDeclaration() (Declaration, bool, error)
	Release()
}

// Extract reads the manifest declaration from a runtime backend and
// builds a host-side Manifest, normalizing and validating every entry.
// It returns (nil, release, nil) for the absent case so callers always
// get a release func to call once they are done with any backend-owned
// strings.
func Extract(src Source) (*Manifest, func(), error) {
	decl, present, err := src.ReadDeclaration()
	if err != nil {
		return nil, src.Release, fmt.Errorf("manifest: extracting from runtime: %w", err)
	}
	if !present {
		return nil, src.Release, nil
	}
	m, err := New(decl)
	if err != nil {
		return nil, src.Release, err
	}
	return m, src.Release, nil
}

// Declarer guards the scripted manifest(...) declaration API against
// being called more than once per app load (§4.3).
type Declarer struct {
	declared bool
}

// Declare records that the declaration API has been called, returning
// ErrAlreadyDeclared if it already has been.
func (d *Declarer) Declare() error {
	if d.declared {
		return ErrAlreadyDeclared
	}
	d.declared = true
	return nil
}
