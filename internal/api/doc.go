// Package api serves the entitlement engine over HTTP: subscription
// lifecycle, trial usage, entitlement checks, tier assignments, commissions
// and the payment confirmation webhook.
//
//	@title			Entitlement Engine API
//	@version		1.0
//	@description	Subscription, entitlement and commission engine API
//	@BasePath		/api/v1
package api
