// Package camera drives network cameras over their HTTP control API.
//
// A Client is bound to one device.Camera. Connect performs API discovery
// (GET on the API root), reads device information and the current shooting
// settings without changing anything. Prepare then applies run-time camera
// settings such as disabling auto power off.
//
// Commands are built separately from being sent:
//
//	cmd, err := client.SetSetting("aperture", "f5.6")   // validated, not sent
//	resp, attempts, err := client.Run(ctx, cmd)         // retried per camera tuning
//
// The shutter release is built as a non-idempotent request, so the
// transport never repeats it once the bytes have been written.
package camera
