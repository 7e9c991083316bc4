package keychain

import (
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// KeyID identifies a key of the wallet. It resolves to the path
// m/<account>'/0/<index>.
type KeyID struct {
	Account uint32
	Index   uint32
}

// ParseKeyID parses the string form of a key identifier.
func ParseKeyID(str string) (KeyID, error) {
	path, err := ParseDerivationPath(str)
	if err != nil {
		return KeyID{}, err
	}
	if len(path) != 3 || path[1] != 0 || path[2] >= hdkeychain.HardenedKeyStart {
		return KeyID{}, ErrInvalidKeyID
	}
	if path[0] < hdkeychain.HardenedKeyStart {
		return KeyID{}, ErrInvalidKeyID
	}
	return KeyID{
		Account: path[0] - hdkeychain.HardenedKeyStart,
		Index:   path[2],
	}, nil
}

// Path returns the derivation path of the key.
func (k KeyID) Path() DerivationPath {
	return DerivationPath{hdkeychain.HardenedKeyStart + k.Account, 0, k.Index}
}

func (k KeyID) String() string {
	return k.Path().String()
}

// Next returns the identifier following k in the same account.
func (k KeyID) Next() KeyID {
	return KeyID{Account: k.Account, Index: k.Index + 1}
}
