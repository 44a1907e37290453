package binding

import "slices"

// defaultColorProperty is the style property watched when none is configured.
const defaultColorProperty = "color"

// colorBinding writes one bitstring covering every attached entity. Each
// entity owns channels-per-element channels; the configured colour label
// selects which one is on.
//
// Example configuration:
//
//	channels-per-element="2" colors-channel="white:0;blue:1"
//
// An entity at index 1 turning "blue" produces "..01" at channels 2-3.
type colorBinding struct {
	*base
	engine     *OutboundEngine
	properties []string
}

func newColor(cfg Config, deps Deps) *colorBinding {
	return &colorBinding{base: newBase(cfg, deps)}
}

// Activate validates the binding and parses its channel configuration.
func (b *colorBinding) Activate() error {
	started, err := b.activate()
	if err != nil || !started {
		return err
	}

	cpe, perr := ParseChannelsPerElement(b.cfg.Option(OptChannelsPerElement))
	if perr != nil {
		b.logWarn("invalid channels-per-element, using 1",
			"value", b.cfg.Option(OptChannelsPerElement), "error", perr)
	}

	channels, mixed := ParseChannelIndexMap(b.cfg.Option(OptColorsChannel))
	if mixed {
		b.logWarn("mixed format in colors-channel: some labels have explicit indices and others do not, falling back to sequential assignment from 0",
			"colors_channel", b.cfg.Option(OptColorsChannel))
	}

	b.properties = ParsePropertyNames(b.cfg.Option(OptColorPropertyNames), defaultColorProperty)
	b.engine = NewOutboundEngine(channels, cpe, func(payload string) error {
		if !b.write(payload) {
			b.logDebug("bitstring not delivered", "payload", payload)
		}
		return nil
	})

	b.logDebug("colour binding active",
		"channels_per_element", cpe,
		"labels", channels.Labels(),
		"properties", b.properties)
	return nil
}

// StyleChanged handles a watched style property change on an entity.
func (b *colorBinding) StyleChanged(index int, _ Target, property, value string) {
	if !b.Active() || b.engine == nil {
		return
	}
	if !slices.Contains(b.properties, property) {
		return
	}
	if !b.targets.has(index) {
		return
	}
	if !b.ready() {
		return
	}

	if _, err := b.engine.Update(index, value); err != nil {
		b.logError("colour update failed", err, "index", index, "value", value)
	}
}

// State returns the bitstring as last written.
func (b *colorBinding) State() string {
	if b.engine == nil {
		return ""
	}
	return b.engine.State()
}
