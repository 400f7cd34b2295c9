// Package refresher pre-warms the link cache on a cron schedule so that
// request handlers rarely pay for a fetch.
package refresher
