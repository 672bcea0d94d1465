// Package bootstrap wires configuration, storage, the query guard, the
// monitoring pipeline and the API into a runnable App and manages its
// lifecycle.
//
// Usage:
//
//	app, err := bootstrap.NewApp(ctx, bootstrap.AppOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer app.Shutdown()
//
//	if err := app.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for shutdown signal
//	app.WaitForShutdown()
package bootstrap
