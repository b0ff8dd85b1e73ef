package mapview

// PopupKind tells which popup, if any, is open.
type PopupKind string

const (
	PopupNone     PopupKind = "none"
	PopupHover    PopupKind = "hover"
	PopupDetailed PopupKind = "detailed"
)

// Popup is the open popup. ID is empty when Kind is PopupNone.
type Popup struct {
	Kind PopupKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// PopupAction names a button on the detailed popup.
type PopupAction string

const (
	ActionDetails    PopupAction = "details"
	ActionAddToRoute PopupAction = "add_to_route"
	ActionStartRoute PopupAction = "start_route"
)

// PopupUnit is a detailed popup instance with its actions bound at creation.
// Closing the popup tears the unit down; a newer unit gets a new generation.
type PopupUnit struct {
	Generation uint64
	PointID    string
	actions    map[PopupAction]func()
}

// Offers reports whether the unit was created with action a.
func (u *PopupUnit) Offers(a PopupAction) bool {
	_, ok := u.actions[a]
	return ok
}

// popupMachine holds the single open popup. The zero value is closed.
type popupMachine struct {
	state Popup
	unit  *PopupUnit
	gen   uint64
}

func (m *popupMachine) current() Popup {
	if m.state.Kind == "" {
		return Popup{Kind: PopupNone}
	}
	return m.state
}

// enter opens a hover popup, but only when nothing is open.
func (m *popupMachine) enter(id string) bool {
	if m.current().Kind != PopupNone {
		return false
	}
	m.state = Popup{Kind: PopupHover, ID: id}
	return true
}

// leave closes the hover popup of id. Other popups are left alone.
func (m *popupMachine) leave(id string) bool {
	if m.state.Kind != PopupHover || m.state.ID != id {
		return false
	}
	m.state = Popup{Kind: PopupNone}
	return true
}

// open replaces whatever is open with a detailed popup for id.
func (m *popupMachine) open(id string, actions map[PopupAction]func()) *PopupUnit {
	m.gen++
	m.state = Popup{Kind: PopupDetailed, ID: id}
	m.unit = &PopupUnit{Generation: m.gen, PointID: id, actions: actions}
	return m.unit
}

// close shuts any popup and drops the bound unit.
func (m *popupMachine) close() bool {
	changed := m.current().Kind != PopupNone
	m.state = Popup{Kind: PopupNone}
	m.unit = nil
	return changed
}

// action returns the bound func for a on the live unit of generation gen.
func (m *popupMachine) action(gen uint64, a PopupAction) (func(), bool) {
	if m.unit == nil || m.unit.Generation != gen {
		return nil, false
	}
	fn, ok := m.unit.actions[a]
	return fn, ok
}
