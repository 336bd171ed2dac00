package bin

const (
	DefaultMaxRequests = 20
	DefaultMaxRawSize  = 10240
)

// Policy carries the operator limits applied when bins capture requests.
// It is configuration, not bin state, and is never written into a snapshot.
type Policy struct {
	MaxRequests   int
	MaxRawSize    int
	IgnoreHeaders []string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRequests: DefaultMaxRequests,
		MaxRawSize:  DefaultMaxRawSize,
	}
}
