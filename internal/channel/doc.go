// Package channel implements the realtime pub/sub client that keeps the
// gateway synchronised with the cloud.
//
// One long-lived websocket carries JSON envelopes {topic, event, ref,
// payload}. Each topic is joined with a phx_join handshake and delivers
// events only after the server acknowledges the join with status "ok". A
// heartbeat envelope is sent every heartbeat interval on the control topic;
// reconnection uses a fixed delay, and on every reconnect all known
// subscriptions are rejoined from scratch (joined flags reset first, one
// join envelope each).
//
// Postgres change feeds are a specialisation: SubscribeFiltered builds the
// join payload carrying the {schema, table, event} filter and derives the
// topic name from schema and table.
//
// The ref counter is per-connection: it resets on reconnect and correlates
// requests to replies within that connection only.
package channel
