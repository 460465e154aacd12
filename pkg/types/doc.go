// Package types defines the switch point data model shared by the router:
// modes, switch point definitions, configuration, collaborator interfaces,
// and the standard errors callers match with errors.Is.
package types
