// Package model defines the identity records and boundary types shared by the
// registry, its extensions and the transport layer.
//
// Seeds, bound assets and capabilities are value types; components hand out
// copies and never expose their internal storage.
package model
