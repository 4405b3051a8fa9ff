package datastore

import "time"

// DefaultSlowQueryThreshold is the duration after which a query is logged as slow.
const DefaultSlowQueryThreshold = 500 * time.Millisecond
