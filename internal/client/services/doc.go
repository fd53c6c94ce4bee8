// Package services contains the application services of the SyntheticSoul
// client: the session manager that owns the bearer credential, the chat
// service that submits messages and polls asynchronous jobs, and the
// best-effort telemetry pollers.
package services
