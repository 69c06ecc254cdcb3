package domain

// SourceKind identifies the provider family a record came from.
// Precedence between kinds drives merge conflict resolution.
type SourceKind string

const (
	// SourceCustody is the multisig custody service. It is the only
	// authoritative kind: its balances always win outright.
	SourceCustody SourceKind = "authoritative-custody"

	// SourceAnalytics is the on-chain analytics provider.
	SourceAnalytics SourceKind = "analytics"

	// SourceManualLedger is the manually maintained spreadsheet ledger.
	SourceManualLedger SourceKind = "manual-ledger"
)

// Precedence returns the merge precedence of the kind, higher wins.
// Unknown kinds rank below every known one.
func (k SourceKind) Precedence() int {
	switch k {
	case SourceCustody:
		return 3
	case SourceAnalytics:
		return 2
	case SourceManualLedger:
		return 1
	default:
		return 0
	}
}

// Authoritative reports whether records of this kind replace, rather than
// accumulate with, records of other kinds.
func (k SourceKind) Authoritative() bool {
	return k == SourceCustody
}
