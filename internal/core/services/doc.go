// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// Services are pure Go with no CGO. They never talk to a network or a disk
// directly; every backend is reached through a driven port.
package services
