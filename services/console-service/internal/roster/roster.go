// Package roster loads the staff identities that may log into the console.
package roster

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"gopkg.in/yaml.v3"
)

var ErrDuplicateID = errors.New("duplicate actor id")

type file struct {
	Professionals []struct {
		ID        string `yaml:"id"`
		Name      string `yaml:"name"`
		Specialty string `yaml:"specialty"`
		Enabled   *bool  `yaml:"enabled"`
	} `yaml:"professionals"`
	Admins      []person `yaml:"admins"`
	SuperAdmins []person `yaml:"super_admins"`
}

type person struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Roster is immutable after load.
type Roster struct {
	professionals []salon.Professional
	admins        []salon.Actor
	byID          map[string]salon.Actor
}

// Default is used when no roster file is configured: a single super admin.
func Default() *Roster {
	r, _ := New(nil, nil, []salon.SuperAdmin{{ID: "owner", Name: "Administrador"}})
	return r
}

func Load(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return r, nil
}

// Parse reads the YAML form. A professional without "enabled" is enabled.
func Parse(raw []byte) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	var pros []salon.Professional
	for _, p := range f.Professionals {
		enabled := p.Enabled == nil || *p.Enabled
		pros = append(pros, salon.Professional{ID: p.ID, Name: p.Name, Specialty: p.Specialty, Enabled: enabled})
	}
	var admins []salon.Admin
	for _, a := range f.Admins {
		admins = append(admins, salon.Admin{ID: a.ID, Name: a.Name})
	}
	var supers []salon.SuperAdmin
	for _, s := range f.SuperAdmins {
		supers = append(supers, salon.SuperAdmin{ID: s.ID, Name: s.Name})
	}
	return New(pros, admins, supers)
}

func New(pros []salon.Professional, admins []salon.Admin, supers []salon.SuperAdmin) (*Roster, error) {
	r := &Roster{byID: map[string]salon.Actor{}}
	add := func(a salon.Actor) error {
		id := strings.TrimSpace(a.ActorID())
		if id == "" {
			return fmt.Errorf("actor %q has no id", a.DisplayName())
		}
		if _, dup := r.byID[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		r.byID[id] = a
		return nil
	}
	for _, p := range pros {
		if err := add(p); err != nil {
			return nil, err
		}
		r.professionals = append(r.professionals, p)
	}
	for _, s := range supers {
		if err := add(s); err != nil {
			return nil, err
		}
		r.admins = append(r.admins, s)
	}
	for _, a := range admins {
		if err := add(a); err != nil {
			return nil, err
		}
		r.admins = append(r.admins, a)
	}
	return r, nil
}

// Professionals returns the enabled professionals in roster order.
func (r *Roster) Professionals() []salon.Actor {
	out := make([]salon.Actor, 0, len(r.professionals))
	for _, p := range r.professionals {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// Administrators returns super admins first, then admins.
func (r *Roster) Administrators() []salon.Actor {
	return append([]salon.Actor(nil), r.admins...)
}

// Lookup finds any actor by id, including disabled professionals.
func (r *Roster) Lookup(id string) (salon.Actor, bool) {
	a, ok := r.byID[id]
	return a, ok
}

// ProfessionalName resolves a professional id for display.
func (r *Roster) ProfessionalName(id string) string {
	if a, ok := r.byID[id]; ok {
		return a.DisplayName()
	}
	return ""
}
