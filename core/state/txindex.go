package state

// TxSeen reports whether a transaction with hash was already applied.
func (m *Manager) TxSeen(hash [32]byte) (bool, error) {
	data, err := m.get(txSeenKey(hash))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// MarkTxSeen records hash in the replay index.
func (m *Manager) MarkTxSeen(hash [32]byte) {
	m.put(txSeenKey(hash), []byte{1})
}

// GenesisApplied reports whether the genesis allocation was committed.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.KVGet(genesisKey, nil)
}

// MarkGenesisApplied records the genesis allocation under its file hash.
func (m *Manager) MarkGenesisApplied(hash [32]byte) error {
	return m.KVPut(genesisKey, hash)
}
