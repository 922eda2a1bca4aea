// Package config defines the configuration object handed to every
// workflow call.
//
// A Config carries identity fields, a workflow section and optional
// collector, engine and resource sections. Sections may carry channel and
// event handlers; these are shared by pointer between every copy of the
// configuration, so embedded code and the host observe the same queues.
//
// Configurations are built in code:
//
//	cfg := config.NewBuilder().
//		QuerentID("q1").
//		EventHandler(channel.NewEventHandler(64)).
//		ChannelHandler(channel.NewHandler()).
//		Build()
//
// or loaded from YAML:
//
//	cfg, err := config.Load("synapse.yaml")
//	cfg.Connect() // attach handlers to every section
//
// Engine sections may set message_throttle_limit (burst) and
// message_throttle_delay (refill interval in milliseconds). Their channels
// then rate-limit messages sent by embedded code to the host.
package config
