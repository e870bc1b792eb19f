package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("FORKLINE_TEST_MODE") == "" {
			_ = os.Setenv("FORKLINE_TEST_MODE", "1")
		}
	})
}
