// Package oba is the public entry point for the oba LDAP v3 client. It
// wraps internal/client's connection core with a DefaultsConfig builder
// and a directory object model; the wire codec, protocol model, filter
// parser, schema registry, attribute map, and modification planner live
// under internal/ and are reached only through this package's surface.
package oba
