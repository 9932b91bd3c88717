package ledger

// AccountStorageOverhead is the fixed per-account size charged on top of data.
const AccountStorageOverhead = 128

const (
	defaultLamportsPerByteYear = 3480
	defaultExemptionYears      = 2
)

// Rent parameterizes the minimum balance an account must keep to stay allocated.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent returns the parameters used when nothing is configured.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: defaultLamportsPerByteYear, ExemptionYears: defaultExemptionYears}
}

// MinimumBalance returns the lamports an account with size bytes of data must hold.
func (r Rent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (AccountStorageOverhead + uint64(size)) * r.LamportsPerByteYear * r.ExemptionYears
}
