// Package client implements change detection and event resolution for clients.
package client
