package console

import (
	"time"

	"github.com/md-rashed-zaman/salonconsole/libs/salon"
	"github.com/md-rashed-zaman/salonconsole/services/console-service/internal/visibility"
)

// State is a read-only rendering of a session.
type State struct {
	SessionID          string              `json:"session_id"`
	Open               bool                `json:"open"`
	View               View                `json:"view"`
	Tab                Tab                 `json:"tab"`
	Loading            bool                `json:"loading"`
	Error              string              `json:"error,omitempty"`
	Actor              *ActorInfo          `json:"actor,omitempty"`
	Selectable         []ActorInfo         `json:"selectable,omitempty"`
	LoginError         string              `json:"login_error,omitempty"`
	SelectedDate       string              `json:"selected_date"`
	ProfessionalFilter string              `json:"professional_filter"`
	Appointments       []Row               `json:"appointments,omitempty"`
	PastDue            []string            `json:"past_due,omitempty"`
	Summary            *visibility.Summary `json:"summary,omitempty"`
	Updating           []string            `json:"updating,omitempty"`
	Alert              string              `json:"alert,omitempty"`
	PaymentDialog      *PaymentDialog      `json:"payment_dialog,omitempty"`
}

type ActorInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	AccessLevel salon.AccessLevel `json:"access_level"`
	Specialty   string            `json:"specialty,omitempty"`
}

type Row struct {
	ID               string              `json:"id"`
	Date             time.Time           `json:"date"`
	ClientID         string              `json:"client_id"`
	ClientName       string              `json:"client_name"`
	ProfessionalID   string              `json:"professional_id"`
	ProfessionalName string              `json:"professional_name"`
	ServiceName      string              `json:"service_name"`
	PriceCents       int64               `json:"price_cents"`
	Status           salon.Status        `json:"status"`
	PaymentStatus    salon.PaymentStatus `json:"payment_status,omitempty"`
	PaymentMethod    string              `json:"payment_method,omitempty"`
	Updating         bool                `json:"updating"`
	PastDue          bool                `json:"past_due"`
	Actions          []salon.Action      `json:"actions"`
}

type PaymentDialog struct {
	AppointmentID string   `json:"appointment_id"`
	Methods       []string `json:"methods"`
	OtherChoice   string   `json:"other_choice"`
}

func NewActorInfo(a salon.Actor) ActorInfo {
	info := ActorInfo{ID: a.ActorID(), Name: a.DisplayName(), AccessLevel: a.AccessLevel()}
	if p, ok := a.(salon.Professional); ok {
		info.Specialty = p.Specialty
	}
	return info
}

// State renders the session. Appointments are only listed on the appointment
// view, filtered for the logged-in actor and the selected day.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		SessionID:          s.id,
		Open:               s.open,
		View:               s.view,
		Tab:                s.tab,
		Loading:            s.loading,
		LoginError:         s.loginErr,
		SelectedDate:       s.date.Format(time.DateOnly),
		ProfessionalFilter: s.filter,
		Alert:              s.alert,
	}
	if s.fetchErr != nil {
		st.View = ViewError
		st.Error = ErrFetchFailed.Error()
		return st
	}
	if s.actor != nil {
		info := NewActorInfo(s.actor)
		st.Actor = &info
	}
	if s.open && s.view == ViewSelectRole {
		for _, a := range s.Selectable(s.tab) {
			st.Selectable = append(st.Selectable, NewActorInfo(a))
		}
	}
	if s.view != ViewAppointments || s.engine == nil || s.loading {
		return st
	}

	now := s.deps.Now()
	visible := visibility.Visible(s.engine.Appointments(), s.actor, s.date, s.filter, s.deps.Location)
	pastDue := map[string]bool{}
	for _, a := range visibility.PastDue(visible, now) {
		pastDue[a.ID] = true
		st.PastDue = append(st.PastDue, a.ID)
	}
	updating := map[string]bool{}
	for _, id := range s.engine.Updating() {
		updating[id] = true
		st.Updating = append(st.Updating, id)
	}

	st.Appointments = make([]Row, 0, len(visible))
	for _, a := range visible {
		row := Row{
			ID:               a.ID,
			Date:             a.Date.In(s.deps.Location),
			ClientID:         a.Client.ID,
			ClientName:       a.Client.Name,
			ProfessionalID:   a.Professional.ID,
			ProfessionalName: a.Professional.Name,
			ServiceName:      a.Service.Name,
			PriceCents:       a.Service.PriceCents,
			Status:           a.Status,
			PaymentStatus:    a.PaymentStatus,
			PaymentMethod:    a.PaymentMethod,
			Updating:         updating[a.ID],
			PastDue:          pastDue[a.ID],
			Actions:          []salon.Action{},
		}
		if !row.Updating {
			if acts := salon.ActionsFor(a); acts != nil {
				row.Actions = acts
			}
		}
		st.Appointments = append(st.Appointments, row)
	}
	summary := visibility.Summarize(visible)
	st.Summary = &summary

	if s.dialog != "" {
		st.PaymentDialog = &PaymentDialog{
			AppointmentID: s.dialog,
			Methods:       salon.PaymentMethods,
			OtherChoice:   salon.MethodOtherChoice,
		}
	}
	return st
}
