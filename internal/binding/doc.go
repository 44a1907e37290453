// Package binding implements the channel binding protocol engine.
//
// A binding mediates between a device location on the device server and
// the in-memory entities that reference it. Inbound bindings turn the
// device's line-delimited state stream into per-channel events; outbound
// bindings turn entity attribute and style changes into the bitstring or
// text written back to the device.
//
// # Building Blocks
//
//   - Mutex: single-holder lock with a FIFO wait queue and deferred hand-off
//   - LineFramer: reassembles complete lines from arbitrary byte chunks
//   - ChannelIndexMap: label to channel offset mapping ("white:0;blue:1")
//   - ChannelStore: growable positional buffer with change diffing
//   - InboundEngine: LineFramer + ChannelStore, raises events on change
//   - OutboundEngine: ChannelIndexMap + ChannelStore + Mutex, writes bitstrings
//   - TextForwarder: last-value gate and truncation for text bindings
//   - Player: playback capability the video flavor offers its entity
//
// # Flavors
//
//	ibits-button     press / release            inbound bitstring
//	ibits-item       pickup / putdown           inbound bitstring
//	obits-color      colour label -> channels   outbound bitstring
//	iobits-lock      locked attribute           bidirectional, channel 0
//	otext-message    message attribute          outbound text (120 chars)
//	otext-attribute  name=value forwarding      outbound text (1024 chars)
//	otext-video      playback commands          bidirectional keyed lines
//
// # Wire Format
//
// Inbound lines are positional bitstrings, one character per channel, where
// '1' means active and anything else inactive. The video flavor reads keyed
// lines instead ("CURRENT_TIME=4.2", "END"). The flavor decides the line
// kind; nothing is auto-detected.
//
// # Hazards
//
// Mutex has no timeout. A holder that never calls its Unlock starves every
// later write on that binding. Callers must release on every path.
//
// # Thread Safety
//
// All exported types are safe for concurrent use unless stated otherwise.
// ChannelStore and LineFramer are owned by a single engine and rely on the
// engine's lock.
package binding
