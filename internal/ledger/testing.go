package ledger

import "github.com/vaultkeep/vaultkeep/internal/pda"

// SeedBalance is a test helper that seeds the balance for a system account when
// using the in-memory ledger. It bypasses the rent minimum.
func SeedBalance(l Ledger, addr pda.Address, lamports uint64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		acc, exists := mem.accounts[addr]
		if !exists {
			acc = Account{Address: addr, Owner: pda.SystemProgram}
		}
		acc.Lamports = lamports
		mem.accounts[addr] = acc
	}
}
