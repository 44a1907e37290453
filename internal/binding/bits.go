package binding

// bitsInput is the read-only bitstring binding behind ibits-button and
// ibits-item. Each channel raises one of two events when it flips.
type bitsInput struct {
	*base
	engine *InboundEngine
}

func newBitsInput(cfg Config, deps Deps, events EventPair) *bitsInput {
	b := &bitsInput{base: newBase(cfg, deps)}
	b.engine = NewInboundEngine(cfg.ID, events, b.targets.get)
	return b
}

// Activate validates the binding and subscribes to its location.
func (b *bitsInput) Activate() error {
	started, err := b.activate()
	if err != nil || !started {
		return err
	}
	b.subscribe(b)
	return nil
}

// OnData feeds device data into the inbound engine.
func (b *bitsInput) OnData(data []byte, err error) {
	if !b.Active() {
		return
	}
	if err != nil {
		b.readFailed(err)
		return
	}
	if len(data) == 0 {
		return
	}
	if err := b.engine.Feed(data); err != nil {
		b.logError("device data rejected", err)
	}
}

// Snapshot returns the last bitstring seen from the device.
func (b *bitsInput) Snapshot() string {
	return b.engine.Snapshot()
}
