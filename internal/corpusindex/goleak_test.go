package corpusindex

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain ensures Open's errgroup fan-out over the index's backing files
// never leaves a goroutine running past the test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}
