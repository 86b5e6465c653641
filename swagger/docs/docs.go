// Package docs holds swagger definitions shared by every package serving routes.
package docs

// Error is returned as plain text for every failed request. Internal errors only carry the
// correlation id of the request.
// swagger:response
type Error struct {
	//in: body
	Message string
}
