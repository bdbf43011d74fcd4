// Package mqtt connects the sequencer to an MQTT broker.
//
// It is optional: with mqtt.enabled=false nothing here is constructed and
// runs behave exactly the same.
//
// When enabled the process:
//   - publishes a retained online/offline status, with a last will so a
//     crashed process still reads as offline
//   - publishes run lifecycle and per-task outcomes as JSON (RunPublisher)
//   - subscribes to ugoku/control/stop and cancels the current run on any
//     message (StopHandler)
//
// Publishing is best effort. A broker outage is logged and never halts a
// run.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	dispatcher.AddObserver(mqtt.NewRunPublisher(client, byte(cfg.MQTT.QoS), logger))
//	err = client.Subscribe(mqtt.Topics{}.ControlStop(), 1, mqtt.StopHandler(cancel, logger))
package mqtt
