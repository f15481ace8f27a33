// Package printer aggregates the telemetry of one Bambu printer.
//
// A Client owns an MQTT transport and a single device state. Every report
// the printer publishes is decoded as a JSON object and merged into that
// state field by field: new fields are added, existing fields overwritten,
// and fields missing from a report are left alone. Nothing is ever removed.
//
// After each merge the client takes a deep copy of the state and hands it to
// the subscriber as a *Device. Copies are never touched again, so callers can
// keep and read them from any goroutine.
//
// # Lifecycle
//
//	idle --connect--> connected --first report--> tracking
//	connected, tracking --disconnect--> idle
//
// A failed Connect leaves the client idle.
//
// # Usage
//
// Long-lived subscription:
//
//	client := printer.New(cfg, logger, nil)
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Disconnect()
//
//	err := client.Subscribe(func(d *printer.Device) {
//	    fmt.Println(d.State["print"])
//	})
//
// One-shot retrieval:
//
//	device, err := client.Snapshot(ctx)
//	if device == nil && err == nil {
//	    // the printer published nothing within the wait window
//	}
package printer
