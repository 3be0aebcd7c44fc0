// Package config loads burpctl's configuration.
//
// The configuration is stored in burp.yaml. Every key is optional except
// addr, which may also come from the BURP_ADDR environment variable.
//
// # Configuration File Structure
//
//	addr: 10.0.0.5            # port 9910 is added when missing
//	transport: udp            # or websocket, with addr as a ws:// URL
//	session:
//	  handshake_timeout: 1s
//	  handshake_retries: 3
//	  retransmit_interval: 500ms
//	  max_retransmits: 3
//	  keepalive: 1s
//	  retain_on_reset: false
//	store:
//	  kind: sqlite            # none, memory, sqlite or s3
//	  path: snapshots.db
//	  interval: 30s
//	  ttl: 24h
//	http:
//	  addr: :8080
//	log:
//	  level: info
//	  format: text
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package config
