// Package bindings hosts the binding hub: the service-side owner of every
// configured binding and the entities attached to them.
//
// The hub loads a declaration file (bindings and entities), builds each
// binding through the flavor factory in package binding, attaches entities
// to their channels and activates the bindings against the device server
// transport. Bindings whose declaration is invalid stay inert and are
// reported in health messages rather than stopping the hub.
//
// Binding events fan out to entity listeners, MQTT state topics, the event
// journal, InfluxDB and any live subscribers (the API websocket hub).
//
// MQTT topics:
//
//	graylogic/command/binding/{entity_id}  commands in (set_attribute, play, ...)
//	graylogic/ack/binding/{entity_id}      command acknowledgements
//	graylogic/state/binding/{entity_id}    binding events
//	graylogic/health/bindings              hub health (retained)
package bindings
