// Package device holds the device registry for a photography session.
//
// Two kinds of device exist:
//
//   - Camera: addressed by host:port over HTTP. Carries retry tuning and
//     an advisory settings snapshot.
//   - Turntable: addressed by serial port. Carries its rotation speed.
//
// The registry is built once from a device list (JSON or YAML) with a
// "camera" and a "motor" section:
//
//	{
//	  "camera": {"cam1": "192.168.1.10:8080", "cam2": "192.168.1.11:8080"},
//	  "motor":  {"table": "/dev/ttyUSB0"}
//	}
//
// The task list refers to devices by these IDs. The target "all" is
// reserved and can never be registered.
package device
