// Package types holds the wire types shared by the analyst and the server.
package types
