// Package provision drives tracked accounts from invited to completed.
//
// For each team the [Machine] first makes sure the team's credential is
// fresh, then walks the accounts that still need work:
//
//	invited → processing → registered → authorized → completed
//
// A blacklisted domain ends in domain_blacklisted and a rejected account in
// failed; both are absorbing. A registrar failure leaves the account where
// it is so the next run retries it. Once authorized, the account is
// mirrored into every enabled storage provider on a best-effort basis: a
// provider failure is recorded in that provider's entry and does not hold
// back completion.
//
// Every change is saved to the tracker before the next step begins, and a
// requested shutdown is honoured only between accounts.
//
//	run := provision.NewRun(tr, teams)
//	m := provision.NewMachine(run, registrar, blacklist,
//	    provision.WithTokens(tokens),
//	    provision.WithStorage(reconciler),
//	    provision.WithBus(bus))
//	outcomes, err := m.ProcessTeam(ctx, "alpha")
package provision
