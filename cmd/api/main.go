package main

// @title           Purchase Reconciler API
// @version         1.0
// @description     Subscription purchase lifecycle and store notification reconciliation.
// @termsOfService  http://example.com/terms/

// @contact.name   API Support
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8888
// @BasePath  /

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/fatflowers/reconciler/internal/app"
)

func main() {
	if err := run(); err != nil {
		// logging might not be ready
		zap.NewExample().Sugar().Errorf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	a := fx.New(
		app.Module,
		fx.WithLogger(func(log *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Desugar()}
		}),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), app.DefaultStartTimeout)
	defer cancel()
	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start app: %w", err)
	}

	// SIGINT/SIGTERM close Done
	sig := <-a.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.DefaultStopTimeout)
	defer cancelStop()
	if err := a.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop app: %w", err)
	}
	if sig.ExitCode != 0 {
		return fmt.Errorf("app exited with code %d", sig.ExitCode)
	}
	return nil
}
