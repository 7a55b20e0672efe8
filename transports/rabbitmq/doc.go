// Package rabbitmq makes objects callable across processes over RabbitMQ.
//
// A Server consumes a request queue and dispatches every request to a
// proxy.Remotable, typically a proxy.Endpoint over a local object. A Client
// is the Remotable on the calling side: it publishes requests with a
// correlation id, receives replies through direct reply-to and decodes them
// into the result types of a contract interface. Wrapped by a transparent
// proxy, the client is called exactly like the local object:
//
//	client, err := rabbitmq.NewClient(ch, "inventory", reflect.TypeOf((*Inventory)(nil)).Elem())
//	inv, err := proxy.Transparent[Inventory](nil, runtime, client)
//	count, err := inv.Count(ctx, "sku-1")
//
// Arguments and results travel as JSON. Context arguments are not sent;
// the client uses them for its deadline and the server substitutes its own.
package rabbitmq
