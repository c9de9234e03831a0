// Package mqtt provides MQTT client connectivity for the Gray Logic TV Bridge.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Gray Logic uses MQTT as the internal message bus connecting the Core
// to protocol bridges. The TV bridge subscribes to its command topics and
// publishes acks, retained state, and retained health. The broker
// (Mosquitto) decouples Core from protocol-specific implementations.
//
//	Gray Logic Core ↔ MQTT Broker ↔ TV Bridge ↔ Serial Link
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	will := &mqtt.Will{Topic: reporter.GetLWTTopic(), Payload: reporter.GetLWTPayload()}
//	client, err := mqtt.Connect(cfg.MQTT, will)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to TV command topics
//	err = client.Subscribe(aquos.CommandSubscribeTopic(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish retained state
//	client.Publish(aquos.StateTopic("tv-living"), payload, 1, true)
package mqtt
