package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// route is one entry in the client's subscription table.
type route struct {
	qos     byte
	handler MessageHandler
}

// Subscribe routes messages matching topic to handler. Wildcards are
// allowed; the hub subscribes to Topics.AllBindingCommands. The route is
// kept and re-subscribed after a reconnect.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routesMu.Lock()
	c.routes[topic] = route{qos: qos, handler: handler}
	c.routesMu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.guard(handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		c.dropRoute(topic)
		return err
	}
	return nil
}

// Unsubscribe removes the route for topic. Messages already in flight may
// still reach the old handler.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.dropRoute(topic)
	return await(c.paho.Unsubscribe(topic), defaultPublishTimeout, ErrUnsubscribeFailed)
}

func (c *Client) dropRoute(topic string) {
	c.routesMu.Lock()
	delete(c.routes, topic)
	c.routesMu.Unlock()
}

func (c *Client) routeCount() int {
	c.routesMu.Lock()
	defer c.routesMu.Unlock()
	return len(c.routes)
}

// restoreRoutes re-subscribes every route after a reconnect. The broker
// forgets subscriptions because sessions are clean.
func (c *Client) restoreRoutes() {
	c.routesMu.Lock()
	snapshot := make(map[string]route, len(c.routes))
	for topic, r := range c.routes {
		snapshot[topic] = r
	}
	c.routesMu.Unlock()

	for topic, r := range snapshot {
		if err := await(c.paho.Subscribe(topic, r.qos, c.guard(r.handler)), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
			c.logWarn("MQTT route restore failed", "topic", topic, "error", err)
		}
	}
}

// guard adapts a MessageHandler to paho, logging returned errors and
// recovering panics so one bad command cannot kill the paho router.
func (c *Client) guard(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logWarn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}
