package identity

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// Secp256k1 derivation path constants: m/54'/784'/{account}'/0/0.
	PurposeSecp256k1 = 54
	CoinTypeSui      = 784

	// BIP32 hardened offset.
	Hardened = 0x80000000

	// Mnemonic entropy sizes.
	Mnemonic12Words = 128
	Mnemonic24Words = 256
)

// GenerateMnemonic creates a new BIP39 mnemonic with the specified entropy bits.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", fmt.Errorf("identity: entropy bits must be 128 or 256, got %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("identity: failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("identity: failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// Secp256k1FromMnemonic derives the secp256k1 identity of account at
// m/54'/784'/account'/0/0.
func Secp256k1FromMnemonic(mnemonic, passphrase string, account uint32) (*Secp256k1Keypair, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	if account >= Hardened {
		return nil, fmt.Errorf("%w: account %d exceeds hardened boundary", ErrDerivationFailed, account)
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %w", ErrDerivationFailed, err)
	}

	key, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	for depth, idx := range []uint32{
		PurposeSecp256k1 + Hardened,
		CoinTypeSui + Hardened,
		account + Hardened,
		0,
		0,
	} {
		key, err = key.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: depth %d: %w", ErrDerivationFailed, depth, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	return newSecp256k1(priv), nil
}
