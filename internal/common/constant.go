package common

// MaxBatchGroupSize is the hard per-transaction operation cap of the document
// store. No grouped write may carry more operations than this.
const MaxBatchGroupSize = 500

// IdentityProviderName is used as the Resource of identity-side errors.
const IdentityProviderName = "identity"
