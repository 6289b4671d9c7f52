// Package bootstrap runs the graphflow process lifecycle.
//
// An App owns the typed configuration, the logger and a component.Registry.
// Run starts every component, prints a startup summary, blocks until SIGINT
// or SIGTERM and then stops the components in reverse order. RunTask does the
// same around a finite task, which the CLI uses for local graph runs.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//		return err
//	}
//	app.RegisterComponent(graphs)
//	app.RegisterComponent(server.NewComponent(srv))
//	return app.Run(ctx)
package bootstrap
