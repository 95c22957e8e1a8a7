package logging

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// requestIDNode is the snowflake node used for operation IDs. A single
// process runs a single store, so one node number is enough.
var requestIDNode = sync.OnceValue(func() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		// node 1 is always within the valid range
		panic(err)
	}
	return node
})

// GenerateRequestID generates a unique, time-ordered operation ID.
func GenerateRequestID() string {
	return requestIDNode().Generate().String()
}

// ParseRequestID reports whether id is a well-formed operation ID and
// returns its embedded millisecond timestamp.
func ParseRequestID(id string) (int64, bool) {
	sf, err := snowflake.ParseString(id)
	if err != nil {
		return 0, false
	}
	return sf.Time(), true
}
