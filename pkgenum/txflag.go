package pkgenum

// TransactionFlag is one member of a Job's transaction_flags bitfield
// (spec §3/§4.I): modifiers the planner consults when building and
// committing a transaction.
type TransactionFlag string

const (
	TransactionFlagOnlyTrusted   TransactionFlag = "only-trusted"
	TransactionFlagSimulate      TransactionFlag = "simulate"
	TransactionFlagOnlyDownload  TransactionFlag = "only-download"
	TransactionFlagAllowReinstall TransactionFlag = "allow-reinstall"
	TransactionFlagAllowDowngrade TransactionFlag = "allow-downgrade"
	TransactionFlagJustReinstall  TransactionFlag = "just-reinstall"
)

var transactionFlagOrder = []TransactionFlag{
	TransactionFlagOnlyTrusted,
	TransactionFlagSimulate,
	TransactionFlagOnlyDownload,
	TransactionFlagAllowReinstall,
	TransactionFlagAllowDowngrade,
	TransactionFlagJustReinstall,
}

var transactionFlagCodec = newCodec(transactionFlagOrder)

func (f TransactionFlag) Bit() uint { return transactionFlagCodec.bit(f) }

// TransactionFlagSet is a Bitfield specialized for TransactionFlag
// values. No flag is implied: AllowDowngrade is set only when the job
// supplies it, and ClassifyInstall rejects a downgrade without it.
type TransactionFlagSet Bitfield

func TransactionFlagSetToText(f TransactionFlagSet) string {
	return bitfieldToText(transactionFlagOrder, Bitfield(f))
}

func TextToTransactionFlagSet(s string) TransactionFlagSet {
	return TransactionFlagSet(bitfieldFromText(transactionFlagCodec.fromText, transactionFlagCodec.index, s))
}

func (f TransactionFlagSet) Contains(v TransactionFlag) bool {
	return Bitfield(f).Contains(v.Bit())
}

func (f TransactionFlagSet) Add(v TransactionFlag) TransactionFlagSet {
	return TransactionFlagSet(Bitfield(f).Add(v.Bit()))
}
