package main

import (
	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/identity"
)

func newKeygenCmd(g *globals) *cobra.Command {
	var words int
	var account uint32

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a mnemonic and print its address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bits := identity.Mnemonic12Words
			if words == 24 {
				bits = identity.Mnemonic24Words
			}
			mnemonic, err := identity.GenerateMnemonic(bits)
			if err != nil {
				return err
			}
			kp, err := identity.Secp256k1FromMnemonic(mnemonic, "", account)
			if err != nil {
				return err
			}
			if g.jsonOutput {
				return writeJSON(map[string]string{"mnemonic": mnemonic, "address": kp.Address()})
			}
			return writePlain("mnemonic: %s\naddress:  %s\n\nexport %s=%q\n", mnemonic, kp.Address(), MnemonicEnv, mnemonic)
		},
	}
	cmd.Flags().IntVar(&words, "words", 12, "mnemonic length (12 or 24)")
	cmd.Flags().Uint32Var(&account, "account", 0, "account index")
	return cmd
}
