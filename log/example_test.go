package log_test

import (
	"log/slog"
	"os"

	"github.com/ardnew/stackcomp/log"
)

func Example() {
	logger := log.Make(os.Stdout,
		log.WithFormat(log.FormatJSON),
		log.WithTimeLayout("none"))

	logger.Info("assembled", slog.String("target", "stack.yml"))
	// Output: {"level":"INFO","msg":"assembled","target":"stack.yml"}
}
