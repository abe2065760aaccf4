package gtypes

// ContractInfo is the per-contract admin record, keyed by contract address
// (§3). Only Admin may migrate a contract to a new code hash.
type ContractInfo struct {
	CodeHash Hash
	Admin    *Address // nil means no admin: migration always fails
	Label    *string
}

func (ci ContractInfo) HasAdmin() bool { return ci.Admin != nil }
