package binding

import (
	"fmt"
	"strings"
	"sync"
)

// Flavor selects the binding variant and therefore its framing and events.
type Flavor string

// Supported binding flavors.
const (
	FlavorButton    Flavor = "ibits-button"
	FlavorItem      Flavor = "ibits-item"
	FlavorColor     Flavor = "obits-color"
	FlavorLock      Flavor = "iobits-lock"
	FlavorMessage   Flavor = "otext-message"
	FlavorAttribute Flavor = "otext-attribute"
	FlavorVideo     Flavor = "otext-video"
)

// Direction describes which way data flows through a binding.
type Direction string

// Binding directions.
const (
	DirectionInbound       Direction = "inbound"
	DirectionOutbound      Direction = "outbound"
	DirectionBidirectional Direction = "bidirectional"
)

// Direction returns the data direction for the flavor.
func (f Flavor) Direction() Direction {
	switch f {
	case FlavorButton, FlavorItem:
		return DirectionInbound
	case FlavorColor, FlavorMessage, FlavorAttribute:
		return DirectionOutbound
	default:
		return DirectionBidirectional
	}
}

// Valid reports whether the flavor is known.
func (f Flavor) Valid() bool {
	switch f {
	case FlavorButton, FlavorItem, FlavorColor, FlavorLock, FlavorMessage, FlavorAttribute, FlavorVideo:
		return true
	}
	return false
}

// Option names read from Config.Options.
const (
	OptChannelsPerElement = "channels-per-element"
	OptColorsChannel      = "colors-channel"
	OptColorPropertyNames = "color-property-names"
	OptAttributeName      = "attribute-name"
)

// Config declares one binding.
type Config struct {
	ID       string
	Location string
	Flavor   Flavor

	// Options holds the raw flavor-specific attribute strings, keyed by the
	// Opt* names.
	Options map[string]string
}

// Option returns a raw option value, or "" when absent.
func (c Config) Option(name string) string {
	if c.Options == nil {
		return ""
	}
	return c.Options[name]
}

// Validate checks the mandatory attributes.
func (c Config) Validate() error {
	var errs []string
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, "id is required")
	}
	if strings.TrimSpace(c.Location) == "" {
		errs = append(errs, "location is required")
	}
	if !c.Flavor.Valid() {
		errs = append(errs, fmt.Sprintf("unknown flavor %q", c.Flavor))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Logger is the structured logger used by bindings.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Reader receives raw device data for a subscribed location.
// err is non-nil when the transport failed to deliver a message.
type Reader interface {
	OnData(data []byte, err error)
}

// Transport is the device server connection shared by all bindings.
type Transport interface {
	// SubscribeRead registers r for data arriving from location.
	SubscribeRead(location string, r Reader) error

	// Write sends one message to location.
	Write(location string, data string) error

	// IsReady reports whether writes can currently be delivered.
	IsReady() bool
}

// Target is an entity a binding raises events on and reads or mutates
// attributes of.
type Target interface {
	ID() string
	Attribute(name string) (string, bool)
	SetAttribute(name, value string)
	RemoveAttribute(name string)
	Dispatch(ev Event)
}

// Binding is a configured protocol endpoint.
type Binding interface {
	Reader

	ID() string
	Location() string
	Flavor() Flavor

	// Attach binds a target to a channel index. Attaching after activation
	// is allowed; missed events are not replayed.
	Attach(index int, t Target) error
	Detach(index int)
	Targets() map[int]Target

	// Activate validates the configuration and starts the binding.
	// A binding that fails validation stays inert for good.
	Activate() error
	Active() bool

	// AttributeChanged and StyleChanged are called by the entity layer.
	AttributeChanged(index int, t Target, name, value string)
	StyleChanged(index int, t Target, property, value string)

	Close() error
}

// Deps are the collaborators shared by every binding.
type Deps struct {
	Transport Transport
	Logger    Logger
}

// New builds a binding for cfg.Flavor. It does not activate it.
func New(cfg Config, deps Deps) (Binding, error) {
	switch cfg.Flavor {
	case FlavorButton:
		return newBitsInput(cfg, deps, EventPair{Active: EventPress, Inactive: EventRelease}), nil
	case FlavorItem:
		return newBitsInput(cfg, deps, EventPair{Active: EventPickup, Inactive: EventPutdown}), nil
	case FlavorColor:
		return newColor(cfg, deps), nil
	case FlavorLock:
		return newLock(cfg, deps), nil
	case FlavorMessage:
		return newMessage(cfg, deps), nil
	case FlavorAttribute:
		return newAttribute(cfg, deps), nil
	case FlavorVideo:
		return newVideo(cfg, deps), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlavor, cfg.Flavor)
	}
}

// activation states.
const (
	stateDeclared = iota
	stateActive
	stateInert
	stateClosed
)

// base carries the state every flavor shares.
type base struct {
	cfg       Config
	transport Transport
	logger    Logger
	targets   *targetSet

	stateMu sync.RWMutex
	state   int
}

func newBase(cfg Config, deps Deps) *base {
	return &base{
		cfg:       cfg,
		transport: deps.Transport,
		logger:    deps.Logger,
		targets:   newTargetSet(),
	}
}

// ID returns the binding identifier.
func (b *base) ID() string { return b.cfg.ID }

// Location returns the device location.
func (b *base) Location() string { return b.cfg.Location }

// Flavor returns the binding flavor.
func (b *base) Flavor() Flavor { return b.cfg.Flavor }

// Attach binds a target to a channel index.
func (b *base) Attach(index int, t Target) error {
	return b.targets.attach(index, t)
}

// Detach removes the target at index, if any.
func (b *base) Detach(index int) {
	b.targets.detach(index)
}

// Targets returns a snapshot of the attached targets.
func (b *base) Targets() map[int]Target {
	return b.targets.snapshot()
}

// Active reports whether the binding activated successfully.
func (b *base) Active() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state == stateActive
}

// OnData ignores device data; inbound flavors override it.
func (b *base) OnData(_ []byte, _ error) {}

// AttributeChanged ignores attribute changes; flavors that watch
// attributes override it.
func (b *base) AttributeChanged(_ int, _ Target, _, _ string) {}

// StyleChanged ignores style changes; the colour flavor overrides it.
func (b *base) StyleChanged(_ int, _ Target, _, _ string) {}

// Close marks the binding closed. Flavors with timers override it.
func (b *base) Close() error {
	b.stateMu.Lock()
	b.state = stateClosed
	b.stateMu.Unlock()
	return nil
}

// activate moves the binding from declared to active, or to inert when the
// configuration is invalid. The failure is reported once. started is true
// only for the call that performed the transition.
func (b *base) activate() (started bool, err error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	switch b.state {
	case stateActive:
		return false, nil
	case stateInert:
		return false, ErrInert
	case stateClosed:
		return false, fmt.Errorf("%w: binding closed", ErrInert)
	}

	if err := b.cfg.Validate(); err != nil {
		b.state = stateInert
		b.logError("binding refused to activate", err)
		return false, err
	}

	b.state = stateActive
	return true, nil
}

// subscribe registers r with the transport for this binding's location.
func (b *base) subscribe(r Reader) {
	if b.transport == nil {
		return
	}
	if err := b.transport.SubscribeRead(b.cfg.Location, r); err != nil {
		b.logError("subscribe to device location failed", err)
	}
}

// ready reports whether the transport can accept writes now.
func (b *base) ready() bool {
	return b.transport != nil && b.transport.IsReady()
}

// write sends data when the transport is ready. A write while not ready is
// dropped silently.
func (b *base) write(data string) bool {
	if !b.ready() {
		return false
	}
	if err := b.transport.Write(b.cfg.Location, data); err != nil {
		b.logError("device write failed", err)
		return false
	}
	return true
}

// readFailed reports a transport read error. Nothing is buffered or
// mutated for the failed message.
func (b *base) readFailed(err error) {
	b.logError("device read failed", fmt.Errorf("%w: %v", ErrReadFailed, err))
}

func (b *base) logDebug(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, b.logFields(keysAndValues)...)
	}
}

func (b *base) logWarn(msg string, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, b.logFields(keysAndValues)...)
	}
}

func (b *base) logError(msg string, err error, keysAndValues ...any) {
	if b.logger != nil {
		b.logger.Error(msg, b.logFields(append([]any{"error", err}, keysAndValues...))...)
	}
}

func (b *base) logFields(keysAndValues []any) []any {
	return append([]any{
		"binding_id", b.cfg.ID,
		"flavor", string(b.cfg.Flavor),
		"location", b.cfg.Location,
	}, keysAndValues...)
}
