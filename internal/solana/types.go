package solana

// Well-known program and mint addresses.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PazvcLaLqKmdXQb"
	NativeMint         = "So11111111111111111111111111111111111111112"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// NativeDecimals is the decimal precision of SOL.
const NativeDecimals = 9

// SignatureStatus is the commitment outcome of a submitted transaction.
type SignatureStatus struct {
	Signature string
	Slot      int64
	Err       interface{} // nil on success
}
