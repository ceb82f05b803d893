package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/vault"
)

// MasterPasswordEnv names the environment variable read when --master is
// not given.
const MasterPasswordEnv = "SEALVAULT_MASTER_PASSWORD"

const recordsFile = "passwords.json"

func newPasswordCmd(g *globals) *cobra.Command {
	var master string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Manage encrypted password records",
	}
	cmd.PersistentFlags().StringVar(&master, "master", "", "master password (default $"+MasterPasswordEnv+")")

	masterKey := func() string {
		if master != "" {
			return master
		}
		return os.Getenv(MasterPasswordEnv)
	}

	var password string
	add := &cobra.Command{
		Use:   "add <service> <username>",
		Short: "Encrypt and store a password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.withEngine(cmd.Context(), func(rt *runtime) error {
				pv := vault.NewPasswordVault(rt.engine)
				rec, err := pv.Add(cmd.Context(), args[0], args[1], password, masterKey())
				if err != nil {
					return err
				}
				if err := appendRecord(g.recordsPath(), *rec); err != nil {
					return err
				}
				if g.jsonOutput {
					return writeJSON(rec)
				}
				return writePlain("Stored %s (%s) as %s\n", rec.Service, rec.Username, rec.ID)
			})
		},
	}
	add.Flags().StringVar(&password, "password", "", "password to store")

	get := &cobra.Command{
		Use:   "get <blob-id>",
		Short: "Decrypt a stored password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(g.recordsPath())
			if err != nil {
				return err
			}
			return g.withEngine(cmd.Context(), func(rt *runtime) error {
				pv := vault.NewPasswordVault(rt.engine)
				pv.Restore(records...)
				entry, err := pv.Retrieve(cmd.Context(), args[0], masterKey())
				if err != nil {
					return err
				}
				if g.jsonOutput {
					return writeJSON(entry)
				}
				return writePlain("%s\t%s\t%s\n", entry.Service, entry.Username, entry.Password)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored password records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(g.recordsPath())
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(records)
			}
			for _, r := range records {
				if err := writePlain("%s\t%s\t%s\t%s\n", r.ID, r.Service, r.Username, r.CreatedAt.Format("2006-01-02 15:04")); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(add, get, list)
	return cmd
}

func (g *globals) recordsPath() string {
	return filepath.Join(g.cfg.DataDir, recordsFile)
}

func loadRecords(path string) ([]vault.Record, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []vault.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}

func appendRecord(path string, rec vault.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	unlock, err := lockPath(path)
	if err != nil {
		return err
	}
	defer unlock()

	records, err := loadRecords(path)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(append(records, rec), "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}
