// Package entity provides the in-memory entities that bindings drive.
//
// An entity is a named bag of attributes and style properties, plus event
// listeners. It references at most one binding through a binding reference
// of the form "bindingID.index". Changing an attribute or style property
// notifies that binding synchronously, and events raised by the binding
// reach the entity's listeners the same way.
//
// # Architecture
//
//	┌──────────────┐  SetAttribute / SetStyle   ┌──────────────────────┐
//	│   Registry   │───────────────────────────▶│        Entity        │
//	│ (registry.go)│                            │     (entity.go)      │
//	└──────────────┘                            │ attrs, style,        │
//	                                            │ listeners, watchers  │
//	                                            └──────────┬───────────┘
//	                    AttributeChanged / StyleChanged    │  ▲ Dispatch
//	                                                       ▼  │
//	                                            ┌──────────────────────┐
//	                                            │   binding.Binding    │
//	                                            └──────────────────────┘
//
// # Usage
//
//	reg := entity.NewRegistry()
//	door, _ := reg.Create(entity.Config{ID: "hotelDoor", Binding: "lockBinding.0"})
//	_ = reg.Bind(door, lockBinding)
//	door.On(binding.EventLocked, func(ev binding.Event) { ... })
//	_ = reg.SetAttribute("hotelDoor", "locked", "")
//
// # Thread Safety
//
// Entity and Registry are safe for concurrent use. Notifications run
// outside the entity lock, so a binding may mutate the entity it was
// notified about.
package entity
