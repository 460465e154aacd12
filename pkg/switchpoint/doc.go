/*
Package switchpoint routes database access to the readonly or writable side
of a named switch point, without callers choosing a connection themselves.

# Switch points

A switch point maps a name to a readonly and a writable physical database:

	repo, err := switchpoint.New(config)
	main, err := repo.Checkout("main")
	conn, err := main.Connection(ctx) // readonly database by default

Switch points that name the same database share one connection pool; switch
points that name different databases never do.

# Modes

The effective mode of a switch point resolves, highest first:

	scoped mode     WithWritable / WithReadonly / WithMode (innermost wins)
	global mode     SetGlobalMode, shared by the whole process
	default         Readonly

Scopes are carried by the context.Context passed to the body. Code that runs
with a context not derived from the scope, including goroutines started with
an outer context, does not see the override. Global modes and persistent
name overrides (SwitchName) are process-wide state, not scoped.

# Cache invalidation

Statements issued through a Conn are classified as reads or writes. When a
writable Conn runs a write, closing it clears the query cache of the switch
point's readonly database before Close returns.
*/
package switchpoint
