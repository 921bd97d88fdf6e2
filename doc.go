// Package spectrus is a client for a single-guild chat server.
//
// A Client wraps the server's REST API and its WebSocket event stream behind
// typed entities (Channel, Member, Role, Message, Interaction, ...) and keeps
// four in-memory caches (channels, members, roles, application commands) in
// step with the server.
//
// # Lifecycle
//
//	client, err := spectrus.New(cfg)
//	spectrus.On(client, func(e spectrus.MessageCreate) {
//	    if e.Message.Content == "!ping" {
//	        e.Message.Reply(ctx, payload.Text("pong"))
//	    }
//	})
//	if err := client.Open(ctx); err != nil { ... }
//	if err := client.WaitReady(ctx); err != nil { ... }
//
// Open dials the event stream and starts the bootstrap: channels, members,
// roles, commands, the current user and the guild are fetched in that order,
// the caches populated, and a Ready event emitted. Events that arrive while
// bootstrap is still running are held back and replayed, in arrival order,
// right after Ready.
//
// # Events
//
// Every inbound envelope is decoded into one of a closed set of event types.
// For events that touch a cache (channel, member and role create/update/
// delete) the cache is updated before any handler runs. Handlers run on the
// connection's read goroutine, one event at a time, in the order frames
// arrived. Unknown event names are logged and dropped.
//
// The connection is never re-established after it closes.
package spectrus
