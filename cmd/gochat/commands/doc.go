// Package commands implements the gochat command line.
//
//	gochat serve      run the relay (HTTP health checks and the /ws endpoint)
//	gochat connect    join a relay from the terminal
//	gochat inspect    dump users and recent public messages from a stopped relay's store
//
// Relay settings come from the environment (an optional .env file is loaded
// first); flags override them.
package commands
