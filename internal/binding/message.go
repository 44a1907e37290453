package binding

// Attribute names read by the text bindings.
const (
	AttrMessage          = "message"
	defaultAttributeName = "text"
)

// textBinding forwards one entity attribute as text.
//
// otext-message watches "message" and writes bare text up to 120
// characters; it clears the display by writing "" on activation.
// otext-attribute watches the attribute named by attribute-name (default
// "text") and writes name=value up to 1024 characters; empty text is never
// written and entity 0's current value is sent on activation.
type textBinding struct {
	*base
	attribute string
	forwarder *TextForwarder
	initial   func(b *textBinding)
}

func newMessage(cfg Config, deps Deps) *textBinding {
	b := &textBinding{base: newBase(cfg, deps), attribute: AttrMessage}
	b.forwarder = NewTextForwarder(MessageLimit, b.write)
	b.initial = func(b *textBinding) { b.forwarder.Forward("") }
	return b
}

func newAttribute(cfg Config, deps Deps) *textBinding {
	name := cfg.Option(OptAttributeName)
	if name == "" {
		name = defaultAttributeName
	}
	b := &textBinding{base: newBase(cfg, deps), attribute: name}
	b.forwarder = NewTextForwarder(AttributeLimit, b.write, WithKey(name), WithSkipEmpty())
	b.initial = func(b *textBinding) {
		t, ok := b.targets.get(0)
		if !ok {
			return
		}
		if text, ok := t.Attribute(b.attribute); ok {
			b.forwarder.Forward(text)
		}
	}
	return b
}

// Activate validates the binding and performs the initial write.
func (b *textBinding) Activate() error {
	started, err := b.activate()
	if err != nil || !started {
		return err
	}
	b.initial(b)
	return nil
}

// AttributeChanged forwards the watched attribute. A removed attribute
// forwards as empty text.
func (b *textBinding) AttributeChanged(_ int, _ Target, name, value string) {
	if !b.Active() || name != b.attribute {
		return
	}
	b.forwarder.Forward(value)
}

// Attribute returns the watched attribute name.
func (b *textBinding) Attribute() string {
	return b.attribute
}
