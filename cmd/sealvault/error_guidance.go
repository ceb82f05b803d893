package main

import (
	"errors"

	"github.com/bitfsorg/sealvault-go/config"
	"github.com/bitfsorg/sealvault-go/vault"
	"github.com/bitfsorg/sealvault-go/walrus"
)

// formatCLIError renders err with a hint for the failures users can fix.
func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{"error: " + err.Error()}

	switch vault.KindOf(err) {
	case vault.KindValidation:
		if errors.Is(err, vault.ErrTransactionDigest) {
			lines = append(lines, "hint: that looks like a transaction digest; pass the blob id printed by upload.")
		}
	case vault.KindPrecondition:
		switch {
		case errors.Is(err, vault.ErrNoIdentity):
			lines = append(lines, "hint: export "+PrivateKeyEnv+" with the key that pays for storage.")
		case errors.Is(err, vault.ErrNoMasterKey):
			lines = append(lines, "hint: pass --master or set "+MasterPasswordEnv+".")
		case errors.Is(err, vault.ErrNoEncryption):
			lines = append(lines, "hint: set seal.package_id and seal.key_servers in config.toml.")
		case errors.Is(err, vault.ErrNotAuthorized):
			lines = append(lines, "hint: ask the operator of the access service to allow this address.")
		}
	case vault.KindTransport:
		if errors.Is(err, walrus.ErrNotEnoughConfirmations) || errors.Is(err, walrus.ErrBlobUnavailable) {
			lines = append(lines, "hint: too few storage nodes answered; check storage.nodes.")
		} else {
			lines = append(lines, "hint: check the RPC endpoint and storage nodes, then retry.")
		}
	case vault.KindDecryption:
		lines = append(lines, "hint: check the master password or the descriptor saved at upload time.")
	case vault.KindNoFiles:
		lines = append(lines, "hint: the blob exists but holds no files.")
	case vault.KindUnknown:
		if errors.Is(err, config.ErrConfigNotFound) {
			lines = append(lines, "hint: create config.toml in the data directory or pass --config.")
		}
	}
	return lines
}
