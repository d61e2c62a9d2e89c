// Package edition gates inline translation editing for privileged users.
package edition

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/pitabwire/util"

	"github.com/pitabwire/barberdesk/api"
	"github.com/pitabwire/barberdesk/storage"
)

var (
	// ErrEditingNotAllowed is returned by Begin when affordances are hidden.
	ErrEditingNotAllowed = errors.New("translation editing is not allowed")
	// ErrEditFinished is returned when an inline edit is used after it closed.
	ErrEditFinished = errors.New("inline edit already finished")
)

// DefaultSuperAdminRoleID is the role that may edit translations.
const DefaultSuperAdminRoleID int64 = 1

// UserSource exposes the signed in user.
type UserSource interface {
	User() *api.User
}

// Saver persists translation overrides.
type Saver interface {
	Prefetch(ctx context.Context, source string, lang string)
	Save(ctx context.Context, source string, lang string, value string) error
}

type Option func(*Controller)

// WithSuperAdminRoleID sets the role allowed to edit.
func WithSuperAdminRoleID(id int64) Option {
	return func(c *Controller) {
		c.superAdminRoleID = id
	}
}

// Controller owns the persisted edition mode flag. Toggling never calls the backend.
type Controller struct {
	durable          storage.Store
	users            UserSource
	saver            Saver
	superAdminRoleID int64
}

func New(durable storage.Store, users UserSource, saver Saver, opts ...Option) *Controller {
	c := &Controller{
		durable:          durable,
		users:            users,
		saver:            saver,
		superAdminRoleID: DefaultSuperAdminRoleID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) Enabled(ctx context.Context) bool {
	raw, ok := c.durable.Get(ctx, storage.KeyEditionMode)
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	return err == nil && enabled
}

func (c *Controller) SetEnabled(ctx context.Context, enabled bool) {
	c.durable.Set(ctx, storage.KeyEditionMode, strconv.FormatBool(enabled))
	util.Log(ctx).WithField("enabled", enabled).Debug("edition mode changed")
}

// Toggle flips the flag and returns the new value.
func (c *Controller) Toggle(ctx context.Context) bool {
	enabled := !c.Enabled(ctx)
	c.SetEnabled(ctx, enabled)
	return enabled
}

// CanEdit reports whether the signed in user holds the super administrator role.
func (c *Controller) CanEdit() bool {
	if c.users == nil {
		return false
	}
	user := c.users.User()
	return user != nil && user.RoleID == c.superAdminRoleID
}

// ShowAffordances reports whether inline edit controls should be offered.
func (c *Controller) ShowAffordances(ctx context.Context) bool {
	return c.Enabled(ctx) && c.CanEdit()
}

// Begin opens an inline edit of source as rendered in lang. displayed is the
// text currently shown and the starting value.
func (c *Controller) Begin(ctx context.Context, source string, lang string, displayed string) (*InlineEdit, error) {
	if !c.ShowAffordances(ctx) {
		return nil, ErrEditingNotAllowed
	}
	c.saver.Prefetch(ctx, source, lang)
	return &InlineEdit{
		saver:    c.saver,
		source:   source,
		lang:     lang,
		original: displayed,
		value:    displayed,
	}, nil
}

// Key is a key pressed while an inline edit has focus.
type Key int

const (
	KeyOther Key = iota
	KeyEnter
	KeyEscape
)

// Outcome is what a key press or blur did to the edit.
type Outcome int

const (
	// Editing means the edit is still open.
	Editing Outcome = iota
	Saved
	// Unchanged means the edit closed without saving an empty or identical value.
	Unchanged
	Discarded
)

func (o Outcome) String() string {
	switch o {
	case Editing:
		return "editing"
	case Saved:
		return "saved"
	case Unchanged:
		return "unchanged"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// InlineEdit is one open edit of one string.
type InlineEdit struct {
	saver    Saver
	source   string
	lang     string
	original string
	value    string
	finished bool
}

func (e *InlineEdit) Source() string {
	return e.source
}

func (e *InlineEdit) Value() string {
	return e.value
}

func (e *InlineEdit) SetValue(v string) {
	e.value = v
}

// Key handles a key press. Enter commits, Escape discards, others are ignored.
func (e *InlineEdit) Key(ctx context.Context, key Key) (Outcome, error) {
	if e.finished {
		return Editing, ErrEditFinished
	}
	switch key {
	case KeyEnter:
		return e.commit(ctx)
	case KeyEscape:
		e.finished = true
		return Discarded, nil
	default:
		return Editing, nil
	}
}

// Blur commits like Enter.
func (e *InlineEdit) Blur(ctx context.Context) (Outcome, error) {
	if e.finished {
		return Editing, ErrEditFinished
	}
	return e.commit(ctx)
}

// commit saves a changed non-empty value. On a save error the edit stays open.
func (e *InlineEdit) commit(ctx context.Context) (Outcome, error) {
	value := strings.TrimSpace(e.value)
	if value == "" || value == strings.TrimSpace(e.original) {
		e.finished = true
		return Unchanged, nil
	}

	if err := e.saver.Save(ctx, e.source, e.lang, value); err != nil {
		return Editing, err
	}
	e.finished = true
	return Saved, nil
}
