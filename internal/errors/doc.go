// Package errors provides the coded, actionable errors burpctl prints.
//
// Library packages return plain Go errors. At the command boundary they
// are classified into a BurpError carrying a stable code, a category, a
// plain-language detail and a hint:
//
//	err := errors.Classify(sess.Connect(ctx))
//	errors.PrintError(err)
//	// ERROR B200: Switcher did not answer
//	//
//	//   No ConnectAck after 5 attempts.
//	//
//	//   Hint: Check the address and that UDP port 9910 is reachable.
//
// # Codes
//
//	B1xx  configuration
//	B2xx  connection and session
//	B3xx  commands
//	B4xx  snapshot storage
package errors
