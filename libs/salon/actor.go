package salon

// AccessLevel is the wire name of an actor's role.
type AccessLevel string

const (
	AccessProfessional AccessLevel = "professional"
	AccessAdmin        AccessLevel = "admin"
	AccessSuperAdmin   AccessLevel = "super_admin"
)

// Actor is an identity that may log into the staff console.
// The set of implementations is closed: Professional, Admin and SuperAdmin.
type Actor interface {
	ActorID() string
	DisplayName() string
	AccessLevel() AccessLevel
	sealed()
}

type Professional struct {
	ID        string
	Name      string
	Specialty string
	Enabled   bool
}

func (p Professional) ActorID() string          { return p.ID }
func (p Professional) DisplayName() string      { return p.Name }
func (p Professional) AccessLevel() AccessLevel { return AccessProfessional }
func (Professional) sealed()                    {}

type Admin struct {
	ID   string
	Name string
}

func (a Admin) ActorID() string          { return a.ID }
func (a Admin) DisplayName() string      { return a.Name }
func (a Admin) AccessLevel() AccessLevel { return AccessAdmin }
func (Admin) sealed()                    {}

type SuperAdmin struct {
	ID   string
	Name string
}

func (a SuperAdmin) ActorID() string          { return a.ID }
func (a SuperAdmin) DisplayName() string      { return a.Name }
func (a SuperAdmin) AccessLevel() AccessLevel { return AccessSuperAdmin }
func (SuperAdmin) sealed()                    {}

// IsAdministrative reports whether the actor sees every professional's agenda.
func IsAdministrative(a Actor) bool {
	switch a.(type) {
	case Admin, SuperAdmin:
		return true
	case Professional:
		return false
	default:
		return false
	}
}
