/*
Package syncplus runs caller-supplied callables against a shared value
under explicit protection, without handing out the underlying locks.

Contexts:
  - Monitor serializes every Invoke, and adds the Marco/Polo handshake
  - Gate lets up to N callables run at once
  - RW separates shared Read from exclusive Write and Invoke, under a
    Fair, ReaderPreferred or WriterPreferred policy that can change at runtime

A Tree composes contexts into a hierarchy. A broadcast Invoke takes every
node's protection top-down in pre-order, so callers that only lock through
the tree cannot deadlock against each other. Send delivers to one typed node:

	tree := syncplus.NewTree(syncplus.NewMonitor(1),
		syncplus.NewTree(syncplus.NewRW("label")),
	)
	tree.Invoke(func(v syncplus.Visit) { fmt.Println(v.Name) })
	err := syncplus.Send[string](tree, 0).To(func(s *string) { *s += "!" })

Methods cannot carry type parameters in Go, so the forms returning the
callable's result are functions: Call, CallWith, MarcoCall, PoloCall and
ReadCall.

Every context is instrumented. It tracks pending and granted requests,
keeps wait and hold statistics per operation, and logs a warning through
log/slog when a request waits or holds longer than WithWarnAfter (default
from SYNCPLUS_WARN_AFTER). Contexts given a WithName are listed in a global
registry and printed by DumpAll.

None of the contexts is reentrant. Calling back into a context from a
callable running on it blocks forever. Build with -tags deadlock to have
go-deadlock report such cycles instead.
*/
package syncplus
