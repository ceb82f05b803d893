package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/seal"
	"github.com/bitfsorg/sealvault-go/vault"
)

type getOptions struct {
	output     string
	descriptor string
}

type getOutput struct {
	BlobID           string            `json:"blob_id"`
	Identifier       string            `json:"identifier"`
	ContentType      string            `json:"content_type"`
	Tags             map[string]string `json:"tags,omitempty"`
	Encrypted        bool              `json:"encrypted"`
	DecryptPath      seal.Path         `json:"decrypt_path,omitempty"`
	DecryptionFailed bool              `json:"decryption_failed,omitempty"`
	Text             string            `json:"text"`
}

func newGetCmd(g *globals) *cobra.Command {
	opts := &getOptions{}
	cmd := &cobra.Command{
		Use:   "get <blob-id>",
		Short: "Read the first file of a blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blobID, err := vault.NormalizeBlobID(args[0])
			if err != nil {
				return err
			}
			var desc seal.Descriptor
			if opts.descriptor != "" {
				data, err := readDescriptor(opts.descriptor)
				if err != nil {
					return err
				}
				if desc, err = seal.ParseDescriptor(data); err != nil {
					return fmt.Errorf("%w: %w", vault.ErrValidation, err)
				}
			}

			return g.withEngine(cmd.Context(), func(rt *runtime) error {
				if opts.output != "" && desc == nil {
					res, err := rt.engine.Save(cmd.Context(), blobID, opts.output)
					if err != nil {
						return err
					}
					return writePlain("%s\n", res.Message)
				}

				r, err := rt.engine.Retrieve(cmd.Context(), &vault.RetrieveOpts{BlobID: blobID, Descriptor: desc})
				if err != nil {
					return err
				}
				if r.DecryptionFailed {
					fmt.Fprintf(os.Stderr, "warning: %v\n", r.DecryptErr)
				}
				if opts.output != "" {
					if err := os.WriteFile(opts.output, r.Content(), 0600); err != nil {
						return fmt.Errorf("write %s: %w", opts.output, err)
					}
					return writePlain("Downloaded %s -> %s (%d bytes, %s)\n", blobID, opts.output, len(r.Content()), r.ContentType)
				}
				if g.jsonOutput {
					return writeJSON(getOutput{
						BlobID:           r.BlobID,
						Identifier:       r.Identifier,
						ContentType:      r.ContentType,
						Tags:             r.Tags,
						Encrypted:        r.Encrypted,
						DecryptPath:      r.DecryptPath,
						DecryptionFailed: r.DecryptionFailed,
						Text:             r.Text,
					})
				}
				return writePlain("%s\n", r.Text)
			})
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "save the content to this path")
	cmd.Flags().StringVar(&opts.descriptor, "descriptor", "", "decryption descriptor JSON, or @file")
	return cmd
}
