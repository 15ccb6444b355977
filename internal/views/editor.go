package views

import "sync"

// Editor is the create/edit dialog of a collection. EditingID is empty when creating.
// Err holds the last failed save; the form is kept so the user can retry.
type Editor[F any] struct {
	Open      bool
	EditingID string
	Form      F
	Err       error
}

type editor[F any] struct {
	mu    sync.Mutex
	state Editor[F]
	blank func() F
}

func newEditor[F any](blank func() F) *editor[F] {
	return &editor[F]{state: Editor[F]{Form: blank()}, blank: blank}
}

func (e *editor[F]) openCreate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Editor[F]{Open: true, Form: e.blank()}
}

func (e *editor[F]) openEdit(id string, form F) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Editor[F]{Open: true, EditingID: id, Form: form}
}

// close resets the editor to a blank, closed form
func (e *editor[F]) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Editor[F]{Form: e.blank()}
}

func (e *editor[F]) editingID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.EditingID
}

func (e *editor[F]) fail(form F, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Open = true
	e.state.Form = form
	e.state.Err = err
}

func (e *editor[F]) snapshot() Editor[F] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
