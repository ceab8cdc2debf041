// Package guard switches the binaries into test mode. Import it for its side
// effect from tests that call a main function.
package guard

import (
	"os"

	"github.com/odyssey-erp/odyssey-console/internal/app"
)

func init() {
	if os.Getenv(app.TestModeEnv) == "" {
		_ = os.Setenv(app.TestModeEnv, "1")
	}
	app.RefreshTestMode()
}
