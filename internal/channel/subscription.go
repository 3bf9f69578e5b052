package channel

import (
	"encoding/json"
	"fmt"
)

// Callback is invoked for every delivered event on a joined topic.
//
// Callbacks run on the client's read goroutine; long work should be handed
// off (the command router only enqueues controller messages).
type Callback func(event string, payload json.RawMessage)

// subscription tracks one topic's join state.
//
// The list is append-only for a connection's lifetime; joined is true only
// between a successful join acknowledgment and the next disconnect.
type subscription struct {
	topic       string
	joinPayload json.RawMessage
	joined      bool
	callback    Callback
}

// postgresChangesPayload is the join payload for a filtered change feed.
type postgresChangesPayload struct {
	Config struct {
		PostgresChanges []postgresChangeFilter `json:"postgres_changes"`
	} `json:"config"`
}

// postgresChangeFilter selects which table changes the server should push.
type postgresChangeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// buildFilteredJoin constructs the topic and join payload for a postgres
// change subscription.
func buildFilteredJoin(schema, table, event string) (topic string, payload json.RawMessage, err error) {
	var p postgresChangesPayload
	p.Config.PostgresChanges = []postgresChangeFilter{{
		Event:  event,
		Schema: schema,
		Table:  table,
	}}

	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("channel: building change filter: %w", err)
	}

	return fmt.Sprintf("realtime:%s:%s", schema, table), data, nil
}
