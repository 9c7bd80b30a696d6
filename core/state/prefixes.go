package state

import "github.com/gagliardetto/solana-go"

var (
	accountPrefix = []byte("account/")
	txSeenPrefix  = []byte("tx/seen/")
	genesisKey    = []byte("genesis/applied")
)

func accountKey(addr solana.PublicKey) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}

func txSeenKey(hash [32]byte) []byte {
	buf := make([]byte, len(txSeenPrefix)+len(hash))
	copy(buf, txSeenPrefix)
	copy(buf[len(txSeenPrefix):], hash[:])
	return buf
}
