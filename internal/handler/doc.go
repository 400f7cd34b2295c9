// Package handler implements the HTTP surface of the link rotator: the
// redirect endpoint, the crawler gate and the operator views (health, proof,
// preview and counter reset).
package handler
